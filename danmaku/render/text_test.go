package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
)

type stillClock struct{}

func (stillClock) PlaybackTime() float64 { return 0 }
func (stillClock) Buffering() bool       { return false }

func newTestEngine(t *testing.T, ds TextDataSource) *danmaku.Engine {
	t.Helper()
	e, err := danmaku.NewEngine(danmaku.DefaultConfig(), danmaku.Collaborators{
		Clock:      stillClock{},
		DataSource: ds,
		Renderer:   NewCanvas(func() float64 { return 0 }),
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestTextDataSource_WidthFor_CountsRunes(t *testing.T) {
	tests := []struct {
		name  string
		ds    TextDataSource
		text  string
		width float64
	}{
		{name: "ascii default glyph", ds: TextDataSource{}, text: "hello", width: 60},
		{name: "wide runes", ds: TextDataSource{GlyphWidth: 20}, text: "弾幕だ", width: 60},
		{name: "empty", ds: TextDataSource{GlyphWidth: 20}, text: "", width: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.width, tc.ds.WidthFor(&danmaku.Item{Text: tc.text}))
		})
	}
}

func TestTextDataSource_CellFor_UsesItemOrDefaultReuseID(t *testing.T) {
	// GIVEN text cells registered under the default and a custom id
	ds := TextDataSource{}
	e := newTestEngine(t, ds)
	RegisterTextCells(e, DefaultReuseID, "big")

	// WHEN cells are requested for items with and without a reuse id
	plain := ds.CellFor(e, &danmaku.Item{Text: "hi"})
	big := ds.CellFor(e, &danmaku.Item{Text: "HI", ReuseID: "big"})

	// THEN each comes from its pool with the item text set
	require.NotNil(t, plain)
	require.NotNil(t, big)
	assert.Equal(t, DefaultReuseID, plain.ReuseIdentifier())
	assert.Equal(t, "hi", plain.(*TextCell).Text())
	assert.Equal(t, "big", big.ReuseIdentifier())
	assert.Equal(t, "HI", big.(*TextCell).Text())
}

func TestTextDataSource_CellFor_UnregisteredID_NoCell(t *testing.T) {
	ds := TextDataSource{ReuseID: "missing"}
	e := newTestEngine(t, ds)
	RegisterTextCells(e)

	assert.Nil(t, ds.CellFor(e, &danmaku.Item{Text: "x"}))
}

func TestTextCell_PrepareForReuse_ClearsTextAndCounts(t *testing.T) {
	c := NewTextCell(DefaultReuseID)
	c.SetText("old")

	c.PrepareForReuse()

	assert.Empty(t, c.Text())
	assert.Equal(t, 1, c.Reuses())
}
