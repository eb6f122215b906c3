package danmaku

import "github.com/danmaku-sim/danmaku-sim/danmaku/trace"

// Clock reports the host's playback state.
type Clock interface {
	// PlaybackTime returns the current playback position in seconds.
	PlaybackTime() float64
	// Buffering reports whether playback is stalled. While buffering, visible
	// items keep aging but no new item starts.
	Buffering() bool
}

// Delegate receives display notifications. ShouldRender is called on the
// serialized runner; the other methods on the presentation runner.
type Delegate interface {
	// PrepareCompleted fires once LoadItems has finished; Start may be called after.
	PrepareCompleted()
	// ShouldRender gates each promotion attempt. Returning false leaves the item
	// pending for a later tick.
	ShouldRender(item *Item) bool
	WillDisplay(cell Cell, item *Item)
	DidEndDisplay(cell Cell, item *Item)
}

// NopDelegate renders everything and ignores notifications. Embed it to
// override a subset of Delegate.
type NopDelegate struct{}

func (NopDelegate) PrepareCompleted()         {}
func (NopDelegate) ShouldRender(*Item) bool   { return true }
func (NopDelegate) WillDisplay(Cell, *Item)   {}
func (NopDelegate) DidEndDisplay(Cell, *Item) {}

// DataSource sizes items and builds their cells.
type DataSource interface {
	// WidthFor returns the rendered width of item. Called on the serialized runner.
	WidthFor(item *Item) float64
	// CellFor returns the cell that displays item. Implementations should reuse
	// cells through e.DequeueReusable. Called on the presentation runner.
	CellFor(e *Engine, item *Item) Cell
}

// Cell is a reusable render handle. Implementations must be comparable
// (pointer types) because the pool tracks membership by identity.
type Cell interface {
	ReuseIdentifier() string
	// PrepareForReuse resets the cell before it is handed out again.
	PrepareForReuse()
}

// Renderer places and animates cells. Every method is called on the
// presentation runner.
type Renderer interface {
	// Display attaches cell at frame.
	Display(cell Cell, frame Rect)
	// Animate moves cell linearly to origin over seconds.
	Animate(cell Cell, to Point, seconds float64)
	// Freeze stops any animation, leaving cell at its in-flight position.
	Freeze(cell Cell)
	// Move repositions cell without animation.
	Move(cell Cell, origin Point)
	// Remove stops animations and detaches cell.
	Remove(cell Cell)
}

// Collaborators bundles the host-side dependencies of an Engine.
// Clock, DataSource and Renderer are required. Delegate defaults to NopDelegate,
// Metrics to an unregistered set, Trace to no recording.
type Collaborators struct {
	Clock      Clock
	Delegate   Delegate
	DataSource DataSource
	Renderer   Renderer
	Metrics    *Metrics
	Trace      *trace.DecisionTrace
}
