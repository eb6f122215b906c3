package trace

// TraceSummary aggregates statistics from a DecisionTrace.
type TraceSummary struct {
	Promoted         int
	ForcedPromotions int
	Dropped          int
	MeanWaitTicks    float64
	MaxWaitTicks     int
	Seeks            int
	PromotedByKind   map[string]int     // kind → promotions
	DroppedByReason  map[DropReason]int // reason → drops
	SaturationByKind map[string]int     // kind → saturated passes
	LaneDistribution map[int]int        // lane index → promotions, all kinds
}

// Summarize computes aggregate statistics from a DecisionTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(dt *DecisionTrace) *TraceSummary {
	summary := &TraceSummary{
		PromotedByKind:   make(map[string]int),
		DroppedByReason:  make(map[DropReason]int),
		SaturationByKind: make(map[string]int),
		LaneDistribution: make(map[int]int),
	}
	if dt == nil {
		return summary
	}

	summary.Promoted = len(dt.Promotions)
	if summary.Promoted > 0 {
		totalWait := 0
		for _, p := range dt.Promotions {
			summary.PromotedByKind[p.Kind]++
			summary.LaneDistribution[p.Lane]++
			if p.Forced {
				summary.ForcedPromotions++
			}
			totalWait += p.Waited
			if p.Waited > summary.MaxWaitTicks {
				summary.MaxWaitTicks = p.Waited
			}
		}
		summary.MeanWaitTicks = float64(totalWait) / float64(summary.Promoted)
	}

	summary.Dropped = len(dt.Drops)
	for _, d := range dt.Drops {
		summary.DroppedByReason[d.Reason]++
	}
	for _, s := range dt.Saturations {
		summary.SaturationByKind[s.Kind]++
	}
	summary.Seeks = len(dt.Seeks)

	return summary
}
