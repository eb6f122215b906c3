// Package testutil provides shared fakes and an engine harness for the
// danmaku test packages.
package testutil

import (
	"sync"
	"testing"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
	"github.com/danmaku-sim/danmaku-sim/danmaku/render"
	"github.com/danmaku-sim/danmaku-sim/danmaku/trace"
)

// FakeClock is a settable Clock.
type FakeClock struct {
	mu        sync.Mutex
	now       float64
	buffering bool
}

func (c *FakeClock) PlaybackTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Buffering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffering
}

// Set moves the clock to t.
func (c *FakeClock) Set(t float64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// SetBuffering changes the buffering flag.
func (c *FakeClock) SetBuffering(b bool) {
	c.mu.Lock()
	c.buffering = b
	c.mu.Unlock()
}

// DisplayEvent is one WillDisplay or DidEndDisplay notification.
type DisplayEvent struct {
	Cell danmaku.Cell
	Item *danmaku.Item
}

// RecordingDelegate records notifications. Gate, when set, answers
// ShouldRender.
type RecordingDelegate struct {
	Gate func(*danmaku.Item) bool

	mu       sync.Mutex
	prepared int
	asked    int
	shown    []DisplayEvent
	ended    []DisplayEvent
}

func (d *RecordingDelegate) PrepareCompleted() {
	d.mu.Lock()
	d.prepared++
	d.mu.Unlock()
}

func (d *RecordingDelegate) ShouldRender(item *danmaku.Item) bool {
	d.mu.Lock()
	d.asked++
	gate := d.Gate
	d.mu.Unlock()
	return gate == nil || gate(item)
}

func (d *RecordingDelegate) WillDisplay(cell danmaku.Cell, item *danmaku.Item) {
	d.mu.Lock()
	d.shown = append(d.shown, DisplayEvent{Cell: cell, Item: item})
	d.mu.Unlock()
}

func (d *RecordingDelegate) DidEndDisplay(cell danmaku.Cell, item *danmaku.Item) {
	d.mu.Lock()
	d.ended = append(d.ended, DisplayEvent{Cell: cell, Item: item})
	d.mu.Unlock()
}

// Prepared returns how many times PrepareCompleted fired.
func (d *RecordingDelegate) Prepared() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prepared
}

// Asked returns how many times ShouldRender was called.
func (d *RecordingDelegate) Asked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.asked
}

// Shown returns a copy of the WillDisplay notifications.
func (d *RecordingDelegate) Shown() []DisplayEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DisplayEvent(nil), d.shown...)
}

// Ended returns a copy of the DidEndDisplay notifications.
func (d *RecordingDelegate) Ended() []DisplayEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DisplayEvent(nil), d.ended...)
}

// EndedCount returns how many times DidEndDisplay fired for item.
func (d *RecordingDelegate) EndedCount(item *danmaku.Item) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, ev := range d.ended {
		if ev.Item == item {
			n++
		}
	}
	return n
}

// Harness bundles an engine with fake collaborators.
type Harness struct {
	Engine   *danmaku.Engine
	Clock    *FakeClock
	Delegate *RecordingDelegate
	Canvas   *render.Canvas
	Metrics  *danmaku.Metrics
	Trace    *trace.DecisionTrace
}

// TestConfig returns a configuration with exact float steps: 0.25s ticks,
// 1s duration (4 ticks), 2s tolerance (8 ticks), 2 lanes per kind.
func TestConfig(mode danmaku.Mode) danmaku.Config {
	cfg := danmaku.DefaultConfig()
	cfg.Mode = mode
	cfg.FrameInterval = 0.25
	cfg.Duration = 1
	cfg.Tolerance = 2
	cfg.NumberOfLanes = 2
	cfg.CellHeight = 30
	cfg.ViewportWidth = 640
	cfg.ViewportHeight = 360
	return cfg
}

// NewHarness creates an engine for cfg with text cells registered and
// decision tracing on. The engine is closed on test cleanup.
func NewHarness(t testing.TB, cfg danmaku.Config) *Harness {
	t.Helper()
	h := &Harness{
		Clock:    &FakeClock{},
		Delegate: &RecordingDelegate{},
		Metrics:  danmaku.NewMetrics(nil),
		Trace:    trace.NewDecisionTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions}),
	}
	h.Canvas = render.NewCanvas(h.Clock.PlaybackTime)
	e, err := danmaku.NewEngine(cfg, danmaku.Collaborators{
		Clock:      h.Clock,
		Delegate:   h.Delegate,
		DataSource: render.TextDataSource{GlyphWidth: 10},
		Renderer:   h.Canvas,
		Metrics:    h.Metrics,
		Trace:      h.Trace,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	render.RegisterTextCells(e)
	t.Cleanup(e.Close)
	h.Engine = e
	return h
}

// Load calls LoadItems and waits for it to settle.
func (h *Harness) Load(items ...*danmaku.Item) {
	h.Engine.LoadItems(items)
	h.Engine.Wait()
}

// Play loads items and starts playback, failing the test on error.
func (h *Harness) Play(t testing.TB, items ...*danmaku.Item) {
	t.Helper()
	h.Load(items...)
	if err := h.Engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.Engine.Wait()
}

// TickAt sets the clock to now, ticks and waits for all resulting work.
func (h *Harness) TickAt(now float64) {
	h.Clock.Set(now)
	h.Engine.Step()
	h.Engine.Wait()
}

// Transit returns a transit item.
func Transit(id string, at float64) *danmaku.Item {
	return &danmaku.Item{ID: id, Time: at, Kind: danmaku.KindTransit, Text: id}
}

// Pinned returns a top or bottom item.
func Pinned(id string, at float64, kind danmaku.Kind) *danmaku.Item {
	return &danmaku.Item{ID: id, Time: at, Kind: kind, Text: id}
}

// VisibleIDs returns the ids of the visible agents in snapshot order.
func VisibleIDs(snap danmaku.EngineSnapshot) []string {
	ids := make([]string, 0, len(snap.Visible))
	for _, s := range snap.Visible {
		ids = append(ids, s.Item.ID)
	}
	return ids
}

// PendingIDs returns the ids of the pending agents, front to back.
func PendingIDs(snap danmaku.EngineSnapshot) []string {
	ids := make([]string, 0, len(snap.Pending))
	for _, s := range snap.Pending {
		ids = append(ids, s.Item.ID)
	}
	return ids
}
