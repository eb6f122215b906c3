// Tracks engine-wide counters: ingestion, promotion per kind, drops per reason,
// lane saturation, recycling and tick cost.

package danmaku

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"

	"github.com/danmaku-sim/danmaku-sim/danmaku/trace"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	ingested    prometheus.Counter
	promoted    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	saturations *prometheus.CounterVec
	recycled    prometheus.Counter
	superseded  prometheus.Counter
	pending     prometheus.Gauge
	visible     prometheus.Gauge
	tickSeconds prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is what tests and the offline replay use
// when they only need Snapshot.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "danmaku_items_ingested_total",
			Help: "Total number of items handed to the source",
		}),
		promoted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "danmaku_items_promoted_total",
			Help: "Total number of items given a lane, by kind",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "danmaku_items_dropped_total",
			Help: "Total number of items removed without being displayed, by reason",
		}, []string{"reason"}),
		saturations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "danmaku_lane_saturations_total",
			Help: "Total number of promotion passes in which a kind ran out of lanes",
		}, []string{"kind"}),
		recycled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "danmaku_items_recycled_total",
			Help: "Total number of visible items whose display time ended",
		}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "danmaku_drains_superseded_total",
			Help: "Total number of drain requests replaced before they started",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "danmaku_pending_items",
			Help: "Items waiting for a lane",
		}),
		visible: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "danmaku_visible_items",
			Help: "Items currently displayed",
		}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "danmaku_tick_seconds",
			Help:    "Wall time spent in one tick's serialized work",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}
	// Pre-create label children so every series is exported from the start.
	for _, k := range Kinds {
		m.promoted.WithLabelValues(k.String())
		m.saturations.WithLabelValues(k.String())
	}
	for _, r := range []trace.DropReason{trace.DropTolerance, trace.DropExpired, trace.DropSeek} {
		m.dropped.WithLabelValues(string(r))
	}
	if reg != nil {
		reg.MustRegister(
			m.ingested,
			m.promoted,
			m.dropped,
			m.saturations,
			m.recycled,
			m.superseded,
			m.pending,
			m.visible,
			m.tickSeconds,
		)
	}
	return m
}

func (m *Metrics) incIngested(n int) {
	m.ingested.Add(float64(n))
}

func (m *Metrics) incPromoted(k Kind) {
	m.promoted.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) addDropped(r trace.DropReason, n int) {
	if n > 0 {
		m.dropped.WithLabelValues(string(r)).Add(float64(n))
	}
}

func (m *Metrics) incSaturation(k Kind) {
	m.saturations.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) addRecycled(n int) {
	m.recycled.Add(float64(n))
}

func (m *Metrics) incSuperseded() {
	m.superseded.Inc()
}

func (m *Metrics) observeTick(seconds float64) {
	m.tickSeconds.Observe(seconds)
}

func (m *Metrics) setQueues(pending, visible int) {
	m.pending.Set(float64(pending))
	m.visible.Set(float64(visible))
}

// MetricsSnapshot is a plain copy of the counters for reporting.
type MetricsSnapshot struct {
	Ingested          int            `json:"ingested"`
	Promoted          int            `json:"promoted"`
	PromotedByKind    map[string]int `json:"promoted_by_kind"`
	Dropped           int            `json:"dropped"`
	DroppedByReason   map[string]int `json:"dropped_by_reason"`
	SaturationsByKind map[string]int `json:"saturations_by_kind"`
	Recycled          int            `json:"recycled"`
	DrainsSuperseded  int            `json:"drains_superseded"`
	Pending           int            `json:"pending"`
	Visible           int            `json:"visible"`
	Ticks             uint64         `json:"ticks"`
	MeanTickMicros    float64        `json:"mean_tick_us"`
}

// Snapshot reads the current collector values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Ingested:          int(counterValue(m.ingested)),
		PromotedByKind:    make(map[string]int),
		DroppedByReason:   make(map[string]int),
		SaturationsByKind: make(map[string]int),
		Recycled:          int(counterValue(m.recycled)),
		DrainsSuperseded:  int(counterValue(m.superseded)),
		Pending:           int(gaugeValue(m.pending)),
		Visible:           int(gaugeValue(m.visible)),
	}
	for _, k := range Kinds {
		n := int(counterValue(m.promoted.WithLabelValues(k.String())))
		s.PromotedByKind[k.String()] = n
		s.Promoted += n
		s.SaturationsByKind[k.String()] = int(counterValue(m.saturations.WithLabelValues(k.String())))
	}
	for _, r := range []trace.DropReason{trace.DropTolerance, trace.DropExpired, trace.DropSeek} {
		n := int(counterValue(m.dropped.WithLabelValues(string(r))))
		s.DroppedByReason[string(r)] = n
		s.Dropped += n
	}
	var pb dto.Metric
	if err := m.tickSeconds.Write(&pb); err == nil && pb.GetHistogram() != nil {
		s.Ticks = pb.GetHistogram().GetSampleCount()
		if s.Ticks > 0 {
			s.MeanTickMicros = pb.GetHistogram().GetSampleSum() / float64(s.Ticks) * 1e6
		}
	}
	return s
}

// Print writes the snapshot as indented JSON under a header.
func (m *Metrics) Print(w io.Writer) {
	snap := m.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		logrus.Errorf("marshaling metrics: %v", err)
		return
	}
	_, _ = fmt.Fprintln(w, "=== Overlay Metrics ===")
	_, _ = fmt.Fprintln(w, string(data))
}

func counterValue(c prometheus.Counter) float64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return pb.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var pb dto.Metric
	if err := g.Write(&pb); err != nil {
		return 0
	}
	return pb.GetGauge().GetValue()
}
