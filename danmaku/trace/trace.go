package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures promotions, drops, saturations and seeks.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// DecisionTrace collects decision records during playback.
// Not thread-safe: the engine records from its serialized runner only.
type DecisionTrace struct {
	Config      TraceConfig
	Promotions  []PromotionRecord
	Drops       []DropRecord
	Saturations []SaturationRecord
	Seeks       []SeekRecord
}

// NewDecisionTrace creates a DecisionTrace ready for recording.
func NewDecisionTrace(config TraceConfig) *DecisionTrace {
	return &DecisionTrace{
		Config:      config,
		Promotions:  make([]PromotionRecord, 0),
		Drops:       make([]DropRecord, 0),
		Saturations: make([]SaturationRecord, 0),
		Seeks:       make([]SeekRecord, 0),
	}
}

// Enabled reports whether records should be captured. Safe on a nil trace.
func (dt *DecisionTrace) Enabled() bool {
	return dt != nil && dt.Config.Level == TraceLevelDecisions
}

// RecordPromotion appends a promotion record.
func (dt *DecisionTrace) RecordPromotion(record PromotionRecord) {
	dt.Promotions = append(dt.Promotions, record)
}

// RecordDrop appends a drop record.
func (dt *DecisionTrace) RecordDrop(record DropRecord) {
	dt.Drops = append(dt.Drops, record)
}

// RecordSaturation appends a saturation record.
func (dt *DecisionTrace) RecordSaturation(record SaturationRecord) {
	dt.Saturations = append(dt.Saturations, record)
}

// RecordSeek appends a seek record.
func (dt *DecisionTrace) RecordSeek(record SeekRecord) {
	dt.Seeks = append(dt.Seeks, record)
}
