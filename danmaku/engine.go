package danmaku

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/danmaku-sim/danmaku-sim/danmaku/internal/dispatch"
	"github.com/danmaku-sim/danmaku-sim/danmaku/trace"
)

var (
	// ErrNotPrepared is returned by Start before LoadItems has completed.
	ErrNotPrepared = errors.New("engine not prepared: call LoadItems first")
	// ErrZeroDuration is returned by Start when the configured display duration is not positive.
	ErrZeroDuration = errors.New("engine duration must be positive")
)

// Engine schedules items into lanes and drives their display.
//
// Three goroutines cooperate:
//   - the drain slot pulls due agents from the Source, latest request wins;
//   - the worker runner owns pending, visible, window and the lane retainers;
//   - the presenter runner owns cells and makes every Renderer and display
//     Delegate call.
//
// Public methods may be called from any goroutine except the presenter (the
// synchronous queries would deadlock).
type Engine struct {
	cfg            Config
	mode           Mode
	toleranceTicks int

	source     Source
	clock      Clock
	delegate   Delegate
	dataSource DataSource
	renderer   Renderer
	metrics    *Metrics
	trace      *trace.DecisionTrace
	pool       *CellPool

	worker    *dispatch.Runner
	presenter *dispatch.Runner
	drains    *drainSlot

	tickSeq   atomic.Uint64
	playing   atomic.Bool
	prepared  atomic.Bool
	bounds    atomic.Pointer[Size]
	closeOnce sync.Once

	// Worker-owned.
	pending   PendingQueue
	visible   []*Agent
	window    TimeWindow
	hasWindow bool
	retainers [numKinds]*LaneRetainer
	policies  [numKinds]LanePolicy
	lanesRNG  *rand.Rand
}

// VisibleCell pairs a displayed cell with its item.
type VisibleCell struct {
	Cell Cell
	Item *Item
}

// EngineSnapshot is a consistent copy of the worker-owned state.
type EngineSnapshot struct {
	Window  TimeWindow   `json:"window"`
	Pending []AgentState `json:"pending"`
	Visible []AgentState `json:"visible"`
}

// NewEngine validates cfg and starts the engine's goroutines. Call Close to
// stop them.
func NewEngine(cfg Config, c Collaborators) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if c.Clock == nil {
		return nil, errors.New("engine requires a Clock")
	}
	if c.DataSource == nil {
		return nil, errors.New("engine requires a DataSource")
	}
	if c.Renderer == nil {
		return nil, errors.New("engine requires a Renderer")
	}

	e := &Engine{
		cfg:            cfg,
		mode:           cfg.mode(),
		toleranceTicks: cfg.ToleranceTicks(),
		source:         NewSource(cfg.mode()),
		clock:          c.Clock,
		delegate:       c.Delegate,
		dataSource:     c.DataSource,
		renderer:       c.Renderer,
		metrics:        c.Metrics,
		trace:          c.Trace,
		pool:           NewCellPool(),
		lanesRNG:       NewPartitionedRNG(cfg.Seed).ForSubsystem(SubsystemLanes),
	}
	if e.delegate == nil {
		e.delegate = NopDelegate{}
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	for _, k := range Kinds {
		e.retainers[k] = NewLaneRetainer()
		e.policies[k] = NewLanePolicy(k, cfg.NumberOfLanes, cfg.CellHeight)
	}
	e.bounds.Store(&Size{W: cfg.ViewportWidth, H: cfg.ViewportHeight})

	e.worker = dispatch.NewRunner("worker")
	e.presenter = dispatch.NewRunner("presenter")
	e.drains = newDrainSlot(e.drain)

	logrus.Debugf("engine created: mode=%s duration=%.2fs tolerance=%d ticks lanes=%d",
		e.mode, cfg.Duration, e.toleranceTicks, cfg.NumberOfLanes)
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Prepared reports whether LoadItems has completed. Stop does not clear it,
// so Start may resume after Stop without reloading.
func (e *Engine) Prepared() bool { return e.prepared.Load() }

// Playing reports whether ticks are being processed.
func (e *Engine) Playing() bool { return e.playing.Load() }

// Bounds returns the current viewport size.
func (e *Engine) Bounds() Size { return *e.bounds.Load() }

// LoadItems stops playback, hands items to the source and preloads the first
// window. Delegate.PrepareCompleted fires on the presenter once Start may be
// called. An empty list completes immediately, which is how live mode is
// prepared.
func (e *Engine) LoadItems(items []*Item) {
	e.prepared.Store(false)
	e.Stop()

	if len(items) == 0 {
		e.prepared.Store(true)
		e.presenter.Post(e.delegate.PrepareCompleted)
		return
	}

	e.metrics.incIngested(len(items))
	e.source.Ingest(items, func() {
		e.requestDrain(TimeWindow{Time: 0, Interval: e.cfg.FrameInterval}, e.tickSeq.Load(), false)
		e.prepared.Store(true)
		logrus.Infof("loaded %d items", len(items))
		e.presenter.Post(e.delegate.PrepareCompleted)
	})
}

// Start begins processing ticks and resumes transit animations frozen by
// Pause. Calling Start while playing is a no-op.
func (e *Engine) Start() error {
	if e.cfg.Duration <= 0 {
		return ErrZeroDuration
	}
	if !e.prepared.Load() {
		return ErrNotPrepared
	}
	if e.playing.Swap(true) {
		return nil
	}
	e.worker.Post(func() {
		type resume struct {
			a       *Agent
			to      Point
			seconds float64
		}
		var resumes []resume
		for _, a := range e.visible {
			if a.Item.Kind != KindTransit {
				continue
			}
			resumes = append(resumes, resume{a: a, to: transitTarget(a), seconds: a.Remaining})
		}
		if len(resumes) == 0 {
			return
		}
		e.presenter.Post(func() {
			for _, r := range resumes {
				if r.a.cell != nil {
					e.renderer.Animate(r.a.cell, r.to, r.seconds)
				}
			}
		})
	})
	logrus.Infof("playback started")
	return nil
}

// Pause stops processing ticks and freezes transit cells in place. Pending and
// visible bookkeeping is untouched.
func (e *Engine) Pause() {
	if !e.playing.Swap(false) {
		return
	}
	e.worker.Post(func() {
		var agents []*Agent
		for _, a := range e.visible {
			if a.Item.Kind == KindTransit {
				agents = append(agents, a)
			}
		}
		if len(agents) == 0 {
			return
		}
		e.presenter.Post(func() {
			for _, a := range agents {
				if a.cell != nil {
					e.renderer.Freeze(a.cell)
				}
			}
		})
	})
	logrus.Infof("playback paused")
}

// Stop halts playback, cancels the pending drain, empties the pending queue
// and the screen, and forgets the recorded window.
func (e *Engine) Stop() {
	e.playing.Store(false)
	e.drains.reset()
	e.worker.Post(func() {
		cleared := e.pending.Clear()
		e.clearScreen()
		e.window = TimeWindow{}
		e.hasWindow = false
		e.metrics.setQueues(0, 0)
		if cleared > 0 {
			logrus.Debugf("stop discarded %d pending items", cleared)
		}
	})
}

// Clear removes every visible item and frees all lanes. Pending items stay
// queued.
func (e *Engine) Clear() {
	e.worker.Post(func() {
		e.clearScreen()
		e.metrics.setQueues(e.pending.Len(), 0)
	})
}

// clearScreen recycles every visible agent. Worker only.
func (e *Engine) clearScreen() {
	visible := e.visible
	e.visible = nil
	e.recycle(visible)
	for _, r := range e.retainers {
		r.Reset()
	}
}

// Submit enqueues one item. A forced item also triggers an immediate drain at
// the clock's current time so it is placed on the next tick.
//
// In batch mode that drain only reaches items due before the end of the
// current window: a forced item scheduled later waits in the source and is
// placed, still forced, once playback reaches its time.
func (e *Engine) Submit(item *Item, forced bool) {
	if item == nil {
		return
	}
	e.source.Submit(item, forced)
	e.metrics.incIngested(1)
	if forced {
		w := TimeWindow{Time: e.clock.PlaybackTime(), Interval: e.cfg.FrameInterval}
		e.requestDrain(w, e.tickSeq.Load(), true)
	}
}

// SubmitMany enqueues items in bulk.
func (e *Engine) SubmitMany(items []*Item) {
	if len(items) == 0 {
		return
	}
	e.source.SubmitMany(items)
	e.metrics.incIngested(len(items))
}

// Visible returns the displayed cells and their items. Agents promoted but not
// yet given a cell by the presenter are omitted.
func (e *Engine) Visible() []VisibleCell {
	var agents []*Agent
	if !e.worker.PostAndWait(func() { agents = slices.Clone(e.visible) }) {
		return nil
	}
	var out []VisibleCell
	e.presenter.PostAndWait(func() {
		for _, a := range agents {
			if a.cell != nil {
				out = append(out, VisibleCell{Cell: a.cell, Item: a.Item})
			}
		}
	})
	return out
}

// ItemForCell returns the item displayed by cell, or false when cell is not
// visible.
func (e *Engine) ItemForCell(cell Cell) (*Item, bool) {
	for _, vc := range e.Visible() {
		if vc.Cell == cell {
			return vc.Item, true
		}
	}
	return nil, false
}

// Snapshot copies the pending queue, the visible set and the recorded window.
func (e *Engine) Snapshot() EngineSnapshot {
	var snap EngineSnapshot
	e.worker.PostAndWait(func() {
		snap.Window = e.window
		snap.Pending = make([]AgentState, 0, e.pending.Len())
		for _, a := range e.pending.Items() {
			snap.Pending = append(snap.Pending, a.state())
		}
		snap.Visible = make([]AgentState, 0, len(e.visible))
		for _, a := range e.visible {
			snap.Visible = append(snap.Visible, a.state())
		}
	})
	return snap
}

// Resize changes the viewport. Pinned cells are re-centered and bottom-pinned
// cells re-anchored to the new bottom edge; transit cells keep their
// animation. Later placements use the new size.
func (e *Engine) Resize(width, height float64) {
	b := Size{W: width, H: height}
	e.bounds.Store(&b)
	e.worker.Post(func() {
		type move struct {
			a  *Agent
			to Point
		}
		var moves []move
		for _, a := range e.visible {
			if a.Item.Kind == KindTransit || a.Lane < 0 {
				continue
			}
			a.Position = e.policies[a.Item.Kind].Origin(a.Lane, a.Size, b)
			moves = append(moves, move{a: a, to: a.Position})
		}
		if len(moves) == 0 {
			return
		}
		e.presenter.Post(func() {
			for _, m := range moves {
				if m.a.cell != nil {
					e.renderer.Move(m.a.cell, m.to)
				}
			}
		})
	})
}

// Register associates reuseID with a cell constructor.
func (e *Engine) Register(reuseID string, factory CellFactory) {
	e.pool.Register(reuseID, factory)
}

// DequeueReusable returns an idle or freshly built cell for reuseID, or false
// when nothing is registered under it.
func (e *Engine) DequeueReusable(reuseID string) (Cell, bool) {
	return e.pool.Dequeue(reuseID)
}

// IdleCells reports how many cells wait for reuse under reuseID.
func (e *Engine) IdleCells(reuseID string) int {
	return e.pool.Idle(reuseID)
}

// Wait blocks until no drain is pending or running and both runners are idle.
// Ticks posted concurrently with Wait may or may not be covered.
func (e *Engine) Wait() {
	for {
		e.drains.waitIdle()
		e.worker.WaitIdle()
		e.presenter.WaitIdle()
		if e.drains.idle() && e.worker.Idle() && e.presenter.Idle() {
			return
		}
	}
}

// Close stops playback and the engine's goroutines after running already
// queued work. Idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.playing.Store(false)
		e.drains.close()
		e.worker.Close()
		e.presenter.Close()
		logrus.Debugf("engine closed")
	})
}

// requestDrain schedules a drain and counts a superseded request.
func (e *Engine) requestDrain(w TimeWindow, seq uint64, forced bool) {
	if e.drains.request(w, seq, forced) {
		e.metrics.incSuperseded()
	}
}

// transitTarget is where a transit cell ends: fully past the left edge.
func transitTarget(a *Agent) Point {
	return Point{X: -a.Size.W, Y: a.Position.Y}
}
