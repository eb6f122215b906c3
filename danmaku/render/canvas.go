// Package render provides a headless Renderer, a text cell and a DataSource
// for driving the engine without a display: offline replays, the serve
// command's /visible endpoint and tests.
package render

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
)

// animation is a linear move from From to To starting at Start.
type animation struct {
	From    danmaku.Point
	To      danmaku.Point
	Start   float64
	Seconds float64
}

// at returns the interpolated origin at time now.
func (a *animation) at(now float64) danmaku.Point {
	if a.Seconds <= 0 || now >= a.Start+a.Seconds {
		return a.To
	}
	if now <= a.Start {
		return a.From
	}
	f := (now - a.Start) / a.Seconds
	return danmaku.Point{
		X: a.From.X + (a.To.X-a.From.X)*f,
		Y: a.From.Y + (a.To.Y-a.From.Y)*f,
	}
}

type placement struct {
	frame danmaku.Rect
	anim  *animation
	seq   uint64 // display order
}

// Canvas is an in-memory Renderer. Animation progress is computed from the
// injected time function, so a simulated clock gives reproducible positions.
// Safe for concurrent use: the engine writes from its presenter while
// Snapshot may be read from anywhere.
type Canvas struct {
	now func() float64

	mu       sync.Mutex
	cells    map[danmaku.Cell]*placement
	nextSeq  uint64
	displays int
	removals int
}

// NewCanvas creates an empty canvas. now returns the current time in seconds.
func NewCanvas(now func() float64) *Canvas {
	if now == nil {
		panic("NewCanvas: now must not be nil")
	}
	return &Canvas{
		now:   now,
		cells: make(map[danmaku.Cell]*placement),
	}
}

func (c *Canvas) Display(cell danmaku.Cell, frame danmaku.Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cells[cell]; ok {
		logrus.Warnf("canvas: cell %p displayed twice", cell)
	}
	c.nextSeq++
	c.cells[cell] = &placement{frame: frame, seq: c.nextSeq}
	c.displays++
}

func (c *Canvas) Animate(cell danmaku.Cell, to danmaku.Point, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.cells[cell]
	if !ok {
		return
	}
	now := c.now()
	p.frame.Origin = p.origin(now)
	p.anim = &animation{From: p.frame.Origin, To: to, Start: now, Seconds: seconds}
}

// Freeze pins cell at its in-flight position.
func (c *Canvas) Freeze(cell danmaku.Cell) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.cells[cell]
	if !ok {
		return
	}
	p.frame.Origin = p.origin(c.now())
	p.anim = nil
}

func (c *Canvas) Move(cell danmaku.Cell, origin danmaku.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.cells[cell]; ok {
		p.frame.Origin = origin
		p.anim = nil
	}
}

func (c *Canvas) Remove(cell danmaku.Cell) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cells[cell]; ok {
		delete(c.cells, cell)
		c.removals++
	}
}

func (p *placement) origin(now float64) danmaku.Point {
	if p.anim == nil {
		return p.frame.Origin
	}
	return p.anim.at(now)
}

// Frame returns cell's current frame, or false when cell is not on the canvas.
func (c *Canvas) Frame(cell danmaku.Cell) (danmaku.Rect, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.cells[cell]
	if !ok {
		return danmaku.Rect{}, false
	}
	return danmaku.Rect{Origin: p.origin(c.now()), Size: p.frame.Size}, true
}

// Animating reports whether cell has an animation attached.
func (c *Canvas) Animating(cell danmaku.Cell) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.cells[cell]
	return ok && p.anim != nil
}

// Len returns the number of cells on the canvas.
func (c *Canvas) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cells)
}

// Counts returns how many Display and Remove calls took effect.
func (c *Canvas) Counts() (displays, removals int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displays, c.removals
}

// CellState describes one cell for introspection.
type CellState struct {
	ReuseID   string       `json:"reuse_id"`
	Text      string       `json:"text,omitempty"`
	Frame     danmaku.Rect `json:"frame"`
	Animating bool         `json:"animating"`
}

// Snapshot lists the cells on the canvas in display order.
func (c *Canvas) Snapshot() []CellState {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	type entry struct {
		seq   uint64
		state CellState
	}
	entries := make([]entry, 0, len(c.cells))
	for cell, p := range c.cells {
		s := CellState{
			ReuseID:   cell.ReuseIdentifier(),
			Frame:     danmaku.Rect{Origin: p.origin(now), Size: p.frame.Size},
			Animating: p.anim != nil,
		}
		if tc, ok := cell.(*TextCell); ok {
			s.Text = tc.Text()
		}
		entries = append(entries, entry{seq: p.seq, state: s})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]CellState, len(entries))
	for i, e := range entries {
		out[i] = e.state
	}
	return out
}
