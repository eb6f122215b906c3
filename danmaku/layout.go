package danmaku

import (
	"fmt"
	"math/rand"
)

// LanePolicy decides lane geometry and collisions for one Kind.
type LanePolicy interface {
	// LaneCount returns how many lanes fit the viewport.
	LaneCount(bounds Size) int
	// Collides reports whether candidate must not share a lane with occupant.
	Collides(occupant, candidate *Agent) bool
	// Origin returns the top-left position for an item of size in lane.
	Origin(lane int, size Size, bounds Size) Point
}

// NewLanePolicy creates the policy for kind. Panics on an invalid kind.
func NewLanePolicy(kind Kind, numberOfLanes int, cellHeight float64) LanePolicy {
	if cellHeight <= 0 {
		panic(fmt.Sprintf("NewLanePolicy: cellHeight must be positive, got %f", cellHeight))
	}
	switch kind {
	case KindTransit:
		return &TransitPolicy{lanes: numberOfLanes, cellHeight: cellHeight}
	case KindTop:
		return &PinnedPolicy{lanes: numberOfLanes, cellHeight: cellHeight}
	case KindBottom:
		return &PinnedPolicy{lanes: numberOfLanes, cellHeight: cellHeight, fromBottom: true}
	default:
		panic(fmt.Sprintf("unhandled lane kind %v", kind))
	}
}

// TransitPolicy lays out scrolling items one per lane over the full height.
type TransitPolicy struct {
	lanes      int
	cellHeight float64
}

func (p *TransitPolicy) LaneCount(bounds Size) int {
	if p.lanes > 0 {
		return p.lanes
	}
	return int(bounds.H / p.cellHeight)
}

// Collides holds the lane for the occupant's whole dwell time. Lanes are not
// shared by speed: a transit lane carries one item until its display ends.
func (p *TransitPolicy) Collides(occupant, _ *Agent) bool {
	return !occupant.Expired()
}

// Origin starts the item just past the right edge.
func (p *TransitPolicy) Origin(lane int, _ Size, bounds Size) Point {
	return Point{X: bounds.W, Y: p.cellHeight * float64(lane)}
}

// PinnedPolicy lays out static items over half the height, from the top edge
// down or from the bottom edge up.
type PinnedPolicy struct {
	lanes      int
	cellHeight float64
	fromBottom bool
}

func (p *PinnedPolicy) LaneCount(bounds Size) int {
	if p.lanes > 0 {
		return p.lanes
	}
	return int(bounds.H / 2 / p.cellHeight)
}

func (p *PinnedPolicy) Collides(occupant, _ *Agent) bool {
	return !occupant.Expired()
}

func (p *PinnedPolicy) Origin(lane int, size Size, bounds Size) Point {
	x := bounds.W/2 - size.W/2
	if p.fromBottom {
		return Point{X: x, Y: bounds.H - p.cellHeight*float64(lane+1)}
	}
	return Point{X: x, Y: p.cellHeight * float64(lane)}
}

// assignLane finds the first lane where a fits and records a in the retainer.
// When every lane is taken, a forced agent overwrites a uniformly random lane;
// the previous occupant keeps displaying. Returns -1, false when nothing fits.
func assignLane(a *Agent, policy LanePolicy, retainer *LaneRetainer, bounds Size, rng *rand.Rand) (int, bool) {
	n := policy.LaneCount(bounds)
	if n <= 0 {
		return -1, false
	}
	for lane := 0; lane < n; lane++ {
		occupant := retainer.Occupant(lane)
		if occupant == nil || !policy.Collides(occupant, a) {
			retainer.Hold(lane, a)
			return lane, true
		}
	}
	if a.Forced {
		lane := rng.Intn(n)
		retainer.Hold(lane, a)
		return lane, true
	}
	return -1, false
}
