package danmaku

// LaneRetainer records which agent last took each lane of one kind.
// Release is lazy: an occupant whose Remaining has run out stays in the table
// until overwritten, and the lane policy treats it as free.
// Owned by the engine's serialized runner; not thread-safe.
type LaneRetainer struct {
	lanes map[int]*Agent
}

// NewLaneRetainer creates an empty retainer.
func NewLaneRetainer() *LaneRetainer {
	return &LaneRetainer{lanes: make(map[int]*Agent)}
}

// Occupant returns the agent recorded for lane, or nil.
func (r *LaneRetainer) Occupant(lane int) *Agent {
	return r.lanes[lane]
}

// Hold records a as the occupant of lane, replacing any previous entry.
func (r *LaneRetainer) Hold(lane int, a *Agent) {
	if a == nil {
		panic("Hold: agent must not be nil")
	}
	r.lanes[lane] = a
}

// Reset forgets every lane.
func (r *LaneRetainer) Reset() {
	clear(r.lanes)
}

// Len returns the number of lanes with a recorded occupant, expired or not.
func (r *LaneRetainer) Len() int {
	return len(r.lanes)
}

// Busy returns the number of lanes whose occupant still has time left.
func (r *LaneRetainer) Busy() int {
	n := 0
	for _, a := range r.lanes {
		if !a.Expired() {
			n++
		}
	}
	return n
}
