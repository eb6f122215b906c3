package render

import (
	"sync"
	"unicode/utf8"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
)

// DefaultReuseID is the pool key for TextCell.
const DefaultReuseID = "text"

// TextCell is a Cell carrying a line of text.
type TextCell struct {
	reuseID string

	mu     sync.Mutex
	text   string
	reuses int
}

// NewTextCell creates a cell pooled under reuseID.
func NewTextCell(reuseID string) *TextCell {
	return &TextCell{reuseID: reuseID}
}

func (c *TextCell) ReuseIdentifier() string { return c.reuseID }

func (c *TextCell) PrepareForReuse() {
	c.mu.Lock()
	c.text = ""
	c.reuses++
	c.mu.Unlock()
}

// SetText sets the displayed text.
func (c *TextCell) SetText(s string) {
	c.mu.Lock()
	c.text = s
	c.mu.Unlock()
}

// Text returns the displayed text.
func (c *TextCell) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Reuses returns how many times the cell was handed out again by the pool.
func (c *TextCell) Reuses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reuses
}

// TextDataSource sizes items by rune count and fills TextCells.
type TextDataSource struct {
	// GlyphWidth is the advance per rune. Defaults to 12 when zero.
	GlyphWidth float64
	// ReuseID is used for items without their own ReuseID. Defaults to DefaultReuseID.
	ReuseID string
}

func (d TextDataSource) WidthFor(item *danmaku.Item) float64 {
	w := d.GlyphWidth
	if w <= 0 {
		w = 12
	}
	return w * float64(utf8.RuneCountInString(item.Text))
}

func (d TextDataSource) CellFor(e *danmaku.Engine, item *danmaku.Item) danmaku.Cell {
	id := item.ReuseID
	if id == "" {
		id = d.reuseID()
	}
	cell, ok := e.DequeueReusable(id)
	if !ok {
		return nil
	}
	if tc, ok := cell.(*TextCell); ok {
		tc.SetText(item.Text)
	}
	return cell
}

func (d TextDataSource) reuseID() string {
	if d.ReuseID == "" {
		return DefaultReuseID
	}
	return d.ReuseID
}

// RegisterTextCells registers a TextCell factory on e under each reuse id, or
// under DefaultReuseID when none is given.
func RegisterTextCells(e *danmaku.Engine, reuseIDs ...string) {
	if len(reuseIDs) == 0 {
		reuseIDs = []string{DefaultReuseID}
	}
	for _, id := range reuseIDs {
		e.Register(id, func(reuseID string) danmaku.Cell { return NewTextCell(reuseID) })
	}
}
