package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
)

// manualTime is a settable time source.
type manualTime struct{ t float64 }

func (m *manualTime) now() float64 { return m.t }

func rect(x, y, w, h float64) danmaku.Rect {
	return danmaku.Rect{Origin: danmaku.Point{X: x, Y: y}, Size: danmaku.Size{W: w, H: h}}
}

func TestCanvas_Animate_InterpolatesLinearly(t *testing.T) {
	// GIVEN a cell displayed at x=100 and animated to x=0 over 2s from t=10
	clock := &manualTime{t: 10}
	c := NewCanvas(clock.now)
	cell := NewTextCell(DefaultReuseID)
	c.Display(cell, rect(100, 30, 20, 30))
	c.Animate(cell, danmaku.Point{X: 0, Y: 30}, 2)

	tests := []struct {
		at   float64
		want float64
	}{
		{at: 9, want: 100},
		{at: 10, want: 100},
		{at: 10.5, want: 75},
		{at: 11, want: 50},
		{at: 12, want: 0},
		{at: 20, want: 0},
	}
	for _, tc := range tests {
		// WHEN the frame is read at time tc.at
		clock.t = tc.at
		f, ok := c.Frame(cell)

		// THEN the origin lies on the line between start and target
		require.True(t, ok)
		assert.InDelta(t, tc.want, f.Origin.X, 1e-9, "at %.2f", tc.at)
		assert.Equal(t, 30.0, f.Origin.Y)
		assert.Equal(t, danmaku.Size{W: 20, H: 30}, f.Size)
	}
}

func TestCanvas_Freeze_PinsInFlightPosition(t *testing.T) {
	clock := &manualTime{t: 0}
	c := NewCanvas(clock.now)
	cell := NewTextCell(DefaultReuseID)
	c.Display(cell, rect(100, 0, 10, 30))
	c.Animate(cell, danmaku.Point{X: -10, Y: 0}, 1)

	clock.t = 0.25
	c.Freeze(cell)
	clock.t = 5

	f, _ := c.Frame(cell)
	assert.InDelta(t, 72.5, f.Origin.X, 1e-9)
	assert.False(t, c.Animating(cell))
}

func TestCanvas_Animate_ContinuesFromCurrentPosition(t *testing.T) {
	// GIVEN a cell half way through an animation
	clock := &manualTime{t: 0}
	c := NewCanvas(clock.now)
	cell := NewTextCell(DefaultReuseID)
	c.Display(cell, rect(200, 0, 10, 30))
	c.Animate(cell, danmaku.Point{X: 0, Y: 0}, 2)
	clock.t = 1

	// WHEN it is retargeted
	c.Animate(cell, danmaku.Point{X: -100, Y: 0}, 1)

	// THEN the new animation starts where the old one was
	f, _ := c.Frame(cell)
	assert.InDelta(t, 100, f.Origin.X, 1e-9)
	clock.t = 1.5
	f, _ = c.Frame(cell)
	assert.InDelta(t, 0, f.Origin.X, 1e-9)
	assert.True(t, c.Animating(cell))
}

func TestCanvas_MoveRemoveAndCounts(t *testing.T) {
	clock := &manualTime{}
	c := NewCanvas(clock.now)
	a, b := NewTextCell(DefaultReuseID), NewTextCell(DefaultReuseID)
	c.Display(a, rect(0, 0, 10, 30))
	c.Display(b, rect(0, 30, 10, 30))

	c.Move(a, danmaku.Point{X: 5, Y: 5})
	f, ok := c.Frame(a)
	require.True(t, ok)
	assert.Equal(t, danmaku.Point{X: 5, Y: 5}, f.Origin)

	c.Remove(a)
	c.Remove(a)
	_, ok = c.Frame(a)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
	displays, removals := c.Counts()
	assert.Equal(t, 2, displays)
	assert.Equal(t, 1, removals)

	// Operations on unknown cells are ignored.
	c.Animate(a, danmaku.Point{}, 1)
	c.Freeze(a)
	c.Move(a, danmaku.Point{})
	assert.Equal(t, 1, c.Len())
}

func TestCanvas_Snapshot_DisplayOrderWithText(t *testing.T) {
	clock := &manualTime{}
	c := NewCanvas(clock.now)
	first, second := NewTextCell(DefaultReuseID), NewTextCell("big")
	first.SetText("first")
	second.SetText("second")
	c.Display(first, rect(0, 0, 50, 30))
	c.Display(second, rect(0, 30, 60, 30))
	c.Animate(second, danmaku.Point{X: -60, Y: 30}, 1)

	snap := c.Snapshot()

	require.Len(t, snap, 2)
	assert.Equal(t, CellState{ReuseID: "text", Text: "first", Frame: rect(0, 0, 50, 30)}, snap[0])
	assert.Equal(t, "big", snap[1].ReuseID)
	assert.Equal(t, "second", snap[1].Text)
	assert.True(t, snap[1].Animating)
}

func TestNewCanvas_NilTime_Panics(t *testing.T) {
	assert.Panics(t, func() { NewCanvas(nil) })
}
