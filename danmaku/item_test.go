package danmaku

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseKind_AcceptsNamesAndShortForms(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"transit", KindTransit},
		{"", KindTransit},
		{"LR", KindTransit},
		{"scroll", KindTransit},
		{"top", KindTop},
		{"ft", KindTop},
		{" Bottom ", KindBottom},
		{"fb", KindBottom},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKind_Unknown_ReturnsError(t *testing.T) {
	_, err := ParseKind("sideways")
	assert.Error(t, err)
}

func TestKind_Valid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid(), "kind %v", k)
	}
	assert.False(t, Kind(-1).Valid())
	assert.False(t, Kind(numKinds).Valid())
	assert.Equal(t, "kind(7)", Kind(7).String())
}

func TestItem_YAMLAndJSON_KindIsName(t *testing.T) {
	// GIVEN an item with a bottom kind
	it := Item{ID: "a", Time: 1.5, Kind: KindBottom, Text: "hi"}

	// WHEN it is encoded as YAML and JSON
	y, err := yaml.Marshal(it)
	require.NoError(t, err)
	j, err := json.Marshal(it)
	require.NoError(t, err)

	// THEN the kind appears by name and decodes back
	assert.Contains(t, string(y), "kind: bottom")
	assert.Contains(t, string(j), `"kind":"bottom"`)
	var back Item
	require.NoError(t, yaml.Unmarshal(y, &back))
	assert.Equal(t, it, back)
}

func TestTimeWindow_End(t *testing.T) {
	w := TimeWindow{Time: 10, Interval: 0.2}
	assert.InDelta(t, 10.2, w.End(), 1e-12)
}

func TestNewAgent_Unassigned(t *testing.T) {
	a := NewAgent(&Item{ID: "a"}, true)
	assert.Equal(t, -1, a.Lane)
	assert.True(t, a.Forced)
	assert.True(t, a.Expired(), "a fresh agent has no display time")

	assert.Panics(t, func() { NewAgent(nil, false) })
}
