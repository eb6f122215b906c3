package danmaku

import "fmt"

// Agent is the mutable runtime state the engine keeps for one Item, from the
// moment a Source produces it until it is recycled or dropped unseen.
//
// Lifecycle: pending (Tolerance counts down each tick) -> visible (Remaining
// counts down each tick) -> recycled. An agent that never gets a lane before
// Tolerance reaches zero is dropped without being displayed.
type Agent struct {
	Item   *Item
	Forced bool // bypasses capacity, saturation and lane collisions

	Remaining float64 // seconds of display left
	Tolerance int     // ticks left in the pending queue
	Lane      int     // -1 until a lane is assigned

	Position Point // set at promotion
	Size     Size  // set at promotion

	// cell is only touched on the presentation runner.
	cell Cell
}

// NewAgent wraps an item with unassigned runtime state.
func NewAgent(item *Item, forced bool) *Agent {
	if item == nil {
		panic("NewAgent: item must not be nil")
	}
	return &Agent{
		Item:   item,
		Forced: forced,
		Lane:   -1,
	}
}

// Expired reports whether the agent has no display time left. An expired
// agent still referenced by a LaneRetainer no longer blocks its lane.
func (a *Agent) Expired() bool {
	return a.Remaining <= 0
}

// Frame returns the agent's placement rectangle.
func (a *Agent) Frame() Rect {
	return Rect{Origin: a.Position, Size: a.Size}
}

func (a *Agent) String() string {
	return fmt.Sprintf("agent{%s lane=%d remaining=%.2f tolerance=%d forced=%t}",
		a.Item, a.Lane, a.Remaining, a.Tolerance, a.Forced)
}

// AgentState is a copy of an agent's bookkeeping, safe to hand outside the
// serialized runner.
type AgentState struct {
	Item      *Item   `json:"item"`
	Forced    bool    `json:"forced"`
	Remaining float64 `json:"remaining"`
	Tolerance int     `json:"tolerance"`
	Lane      int     `json:"lane"`
	Frame     Rect    `json:"frame"`
}

func (a *Agent) state() AgentState {
	return AgentState{
		Item:      a.Item,
		Forced:    a.Forced,
		Remaining: a.Remaining,
		Tolerance: a.Tolerance,
		Lane:      a.Lane,
		Frame:     a.Frame(),
	}
}
