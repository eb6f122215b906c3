package danmaku

import (
	"fmt"
	"strings"
)

// Kind selects how an item moves and which lane set it competes for.
type Kind int

const (
	// KindTransit items scroll from the right edge to fully off the left edge.
	KindTransit Kind = iota
	// KindTop items are held centered, stacked downward from the top edge.
	KindTop
	// KindBottom items are held centered, stacked upward from the bottom edge.
	KindBottom

	numKinds = 3
)

var kindNames = map[Kind]string{
	KindTransit: "transit",
	KindTop:     "top",
	KindBottom:  "bottom",
}

// Kinds lists every lane kind in retainer order.
var Kinds = []Kind{KindTransit, KindTop, KindBottom}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the three lane kinds.
func (k Kind) Valid() bool {
	return k >= KindTransit && k <= KindBottom
}

// ParseKind maps a kind name to a Kind. Accepts "transit", "top", "bottom"
// and the short forms "lr", "ft", "fb" used by common comment dumps.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "transit", "lr", "scroll":
		return KindTransit, nil
	case "top", "ft":
		return KindTop, nil
	case "bottom", "fb":
		return KindBottom, nil
	default:
		return 0, fmt.Errorf("unknown item kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so kinds read naturally in YAML and JSON.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid item kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Item is one timed comment. Items are immutable once handed to the engine;
// identity is the pointer.
type Item struct {
	ID      string  `yaml:"id" json:"id"`
	Time    float64 `yaml:"time" json:"time"` // scheduled appearance, seconds of playback
	Kind    Kind    `yaml:"kind" json:"kind"`
	Text    string  `yaml:"text" json:"text"`
	ReuseID string  `yaml:"reuse_id,omitempty" json:"reuse_id,omitempty"` // cell pool key; empty means the data source decides
	Payload any     `yaml:"payload,omitempty" json:"payload,omitempty"`
}

func (it *Item) String() string {
	return fmt.Sprintf("%s@%.2fs[%s]", it.ID, it.Time, it.Kind)
}

// TimeWindow is "now" plus the lookahead slice processed by one tick.
type TimeWindow struct {
	Time     float64
	Interval float64
}

// End returns Time + Interval.
func (w TimeWindow) End() float64 {
	return w.Time + w.Interval
}

// Point is a position in viewport coordinates (origin top-left).
type Point struct {
	X, Y float64
}

// Size is a width/height pair.
type Size struct {
	W, H float64
}

// Rect is an origin plus size.
type Rect struct {
	Origin Point
	Size   Size
}
