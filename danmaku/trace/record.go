// Package trace provides decision recording for the overlay engine: which items
// got a lane, which were dropped and why, and when the pending queue was reset.
// The package does not import danmaku; records hold plain values.
package trace

// DropReason says why a pending item left the queue without being displayed.
type DropReason string

const (
	// DropTolerance: the item waited longer than the tolerance without a lane.
	DropTolerance DropReason = "tolerance"
	// DropExpired: the item's display time had already passed when drained.
	DropExpired DropReason = "expired"
	// DropSeek: the playback position jumped and the pending queue was cleared.
	DropSeek DropReason = "seek"
)

// PromotionRecord captures one item entering the visible set.
type PromotionRecord struct {
	ItemID string
	Clock  float64
	Kind   string
	Lane   int
	Forced bool
	Waited int // ticks spent pending
}

// DropRecord captures one item leaving the pending queue unseen.
type DropRecord struct {
	ItemID string
	Clock  float64
	Kind   string
	Reason DropReason
}

// SaturationRecord captures a kind running out of lanes during a promotion pass.
type SaturationRecord struct {
	Clock float64
	Kind  string
}

// SeekRecord captures a window jump that cleared the pending queue.
type SeekRecord struct {
	From    float64
	To      float64
	Cleared int
}
