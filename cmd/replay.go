package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
	"github.com/danmaku-sim/danmaku-sim/danmaku/render"
	"github.com/danmaku-sim/danmaku-sim/danmaku/trace"
	"github.com/danmaku-sim/danmaku-sim/danmaku/workload"
)

// replayClock is a settable Clock for offline playback.
type replayClock struct {
	mu        sync.Mutex
	now       float64
	buffering bool
}

func (c *replayClock) PlaybackTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *replayClock) Buffering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffering
}

func (c *replayClock) set(now float64, buffering bool) {
	c.mu.Lock()
	c.now = now
	c.buffering = buffering
	c.mu.Unlock()
}

// span is a half-open playback interval [From, To).
type span struct{ From, To float64 }

func (s span) contains(t float64) bool { return t >= s.From && t < s.To }

// jump moves playback from At to To the first time the clock reaches At.
type jump struct{ At, To float64 }

type replayOptions struct {
	Config     danmaku.Config
	Horizon    float64 // last tick time; <= 0 derives it from the entries
	Buffering  []span
	Seeks      []jump
	TraceLevel string
}

type replayResult struct {
	Ticks     int
	Metrics   *danmaku.Metrics
	Registry  *prometheus.Registry
	Decisions *trace.DecisionTrace
	Final     []render.CellState
}

// timedSubmit is an item handed to Submit once playback reaches its time.
type timedSubmit struct {
	item   *danmaku.Item
	forced bool
}

// replay plays entries through an engine on a simulated clock, one tick per
// frame interval, waiting for all engine work between ticks so the outcome
// depends only on the inputs and the seed.
//
// Batch mode preloads scheduled entries with LoadItems. Live mode submits
// them as playback passes their time. Forced entries are always submitted at
// their time with the forced flag.
func replay(opts replayOptions, entries []workload.Entry) (*replayResult, error) {
	if !trace.IsValidTraceLevel(opts.TraceLevel) {
		return nil, fmt.Errorf("unknown trace level %q", opts.TraceLevel)
	}
	cfg := opts.Config
	clock := &replayClock{}
	canvas := render.NewCanvas(clock.PlaybackTime)
	reg := prometheus.NewRegistry()
	metrics := danmaku.NewMetrics(reg)
	decisions := trace.NewDecisionTrace(trace.TraceConfig{Level: trace.TraceLevel(opts.TraceLevel)})

	engine, err := danmaku.NewEngine(cfg, danmaku.Collaborators{
		Clock:      clock,
		DataSource: render.TextDataSource{},
		Renderer:   canvas,
		Metrics:    metrics,
		Trace:      decisions,
	})
	if err != nil {
		return nil, err
	}
	defer engine.Close()
	render.RegisterTextCells(engine)

	scheduled, forced := workload.Split(entries)
	var timed []timedSubmit
	for _, it := range forced {
		timed = append(timed, timedSubmit{item: it, forced: true})
	}
	if cfg.Mode == danmaku.ModeLive {
		for _, it := range scheduled {
			timed = append(timed, timedSubmit{item: it})
		}
		engine.LoadItems(nil)
	} else {
		engine.LoadItems(scheduled)
	}
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].item.Time < timed[j].item.Time })
	engine.Wait()
	if err := engine.Start(); err != nil {
		return nil, fmt.Errorf("starting playback: %w", err)
	}

	horizon := opts.Horizon
	if horizon <= 0 {
		horizon = defaultHorizon(entries, cfg)
	}
	seeks := append([]jump(nil), opts.Seeks...)
	sort.Slice(seeks, func(i, j int) bool { return seeks[i].At < seeks[j].At })

	interval := cfg.FrameInterval
	base, k := 0.0, 1
	next, ticks := 0, 0
	for {
		now := base + float64(k)*interval
		if len(seeks) > 0 && now >= seeks[0].At {
			logrus.Infof("seek %.2fs -> %.2fs", now, seeks[0].To)
			base, k = seeks[0].To, 0
			now = base
			seeks = seeks[1:]
			skipped := 0
			for next < len(timed) && timed[next].item.Time < now {
				next++
				skipped++
			}
			if skipped > 0 {
				logrus.Infof("seek skipped %d unsubmitted items", skipped)
			}
		}
		if now > horizon+1e-9 {
			break
		}
		clock.set(now, inSpans(opts.Buffering, now))
		submittedForced := false
		for next < len(timed) && timed[next].item.Time <= now {
			engine.Submit(timed[next].item, timed[next].forced)
			submittedForced = submittedForced || timed[next].forced
			next++
		}
		if submittedForced {
			// Let the forced drain land before this tick takes results.
			engine.Wait()
		}
		engine.Step()
		engine.Wait()
		ticks++
		k++
	}
	logrus.Infof("replayed %d ticks up to %.2fs", ticks, horizon)

	return &replayResult{
		Ticks:     ticks,
		Metrics:   metrics,
		Registry:  reg,
		Decisions: decisions,
		Final:     canvas.Snapshot(),
	}, nil
}

// defaultHorizon leaves room for the last item to wait out its tolerance and
// finish displaying.
func defaultHorizon(entries []workload.Entry, cfg danmaku.Config) float64 {
	last := 0.0
	for _, e := range entries {
		last = max(last, e.Time)
	}
	return last + cfg.Duration + cfg.Tolerance + 2*cfg.FrameInterval
}

func inSpans(spans []span, t float64) bool {
	for _, s := range spans {
		if s.contains(t) {
			return true
		}
	}
	return false
}

// parsePairs parses "a:b" second pairs.
func parsePairs(values []string) ([][2]float64, error) {
	out := make([][2]float64, 0, len(values))
	for _, v := range values {
		left, right, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("%q: want <seconds>:<seconds>", v)
		}
		a, err := strconv.ParseFloat(strings.TrimSpace(left), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", v, err)
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", v, err)
		}
		out = append(out, [2]float64{a, b})
	}
	return out, nil
}

func parseSpans(values []string) ([]span, error) {
	pairs, err := parsePairs(values)
	if err != nil {
		return nil, fmt.Errorf("buffering span %w", err)
	}
	spans := make([]span, 0, len(pairs))
	for _, p := range pairs {
		if p[1] <= p[0] {
			return nil, fmt.Errorf("buffering span %g:%g ends before it starts", p[0], p[1])
		}
		spans = append(spans, span{From: p[0], To: p[1]})
	}
	return spans, nil
}

func parseSeeks(values []string) ([]jump, error) {
	pairs, err := parsePairs(values)
	if err != nil {
		return nil, fmt.Errorf("seek %w", err)
	}
	jumps := make([]jump, 0, len(pairs))
	for _, p := range pairs {
		if p[0] < 0 || p[1] < 0 {
			return nil, fmt.Errorf("seek %g:%g: times must be non-negative", p[0], p[1])
		}
		jumps = append(jumps, jump{At: p[0], To: p[1]})
	}
	return jumps, nil
}

// writeReport prints the metrics and, when tracing, the decision summary.
func writeReport(w io.Writer, res *replayResult) {
	res.Metrics.Print(w)
	if !res.Decisions.Enabled() {
		return
	}
	data, err := json.MarshalIndent(trace.Summarize(res.Decisions), "", "  ")
	if err != nil {
		logrus.Errorf("marshaling trace summary: %v", err)
		return
	}
	_, _ = fmt.Fprintln(w, "=== Trace Summary ===")
	_, _ = fmt.Fprintln(w, string(data))
}

// writeMetricsText dumps every registered family in the Prometheus text
// exposition format.
func writeMetricsText(path string, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	defer func() { _ = file.Close() }()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(file, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return file.Close()
}
