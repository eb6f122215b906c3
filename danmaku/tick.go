// Per-tick scheduling: drain application, aging, promotion and tolerance expiry.

package danmaku

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danmaku-sim/danmaku-sim/danmaku/trace"
)

// lifetimeEpsilon absorbs float drift from repeated interval subtraction, so
// an item shown for Duration is recycled after exactly Duration/interval ticks.
const lifetimeEpsilon = 1e-9

// Tick advances the engine to playback time now. It is meant to be called by
// an external timer every Config.FrameInterval seconds.
//
// Unless buffering, Tick requests a drain of [now, now+interval). The drained
// agents are queued by the first tick after the drain completes. The aging,
// promotion and expiry work runs on the worker; Tick itself never blocks.
func (e *Engine) Tick(now float64, buffering bool) {
	if !e.playing.Load() {
		return
	}
	if e.mode == ModeBatch && now <= 0 {
		return
	}
	seq := e.tickSeq.Add(1)
	w := TimeWindow{Time: now, Interval: e.cfg.FrameInterval}
	if !buffering {
		e.requestDrain(w, seq, false)
	}
	bounds := e.Bounds()
	e.worker.Post(func() { e.runTick(seq, w, buffering, bounds) })
}

// Step ticks at the clock's current time and buffering state.
func (e *Engine) Step() {
	e.Tick(e.clock.PlaybackTime(), e.clock.Buffering())
}

// drain runs on the drain slot goroutine. It must not touch worker state.
func (e *Engine) drain(req drainRequest) drainResult {
	res := drainResult{window: req.window, seq: req.seq, forced: req.forced}
	for _, a := range e.source.Drain(req.window) {
		if !a.Item.Kind.Valid() {
			logrus.Warnf("discarding %s: invalid kind", a.Item)
			continue
		}
		if e.mode == ModeBatch && a.Item.Time+e.cfg.Duration <= req.window.Time {
			res.expired = append(res.expired, a)
			continue
		}
		a.Remaining = e.cfg.Duration
		a.Tolerance = e.toleranceTicks
		res.agents = append(res.agents, a)
	}
	return res
}

// runTick is one tick's serialized work.
func (e *Engine) runTick(seq uint64, w TimeWindow, buffering bool, bounds Size) {
	start := time.Now()

	for _, r := range e.drains.take(seq) {
		e.applyDrain(r)
	}
	e.ageVisible(w)
	if !buffering {
		e.promote(w, bounds)
		e.expirePending(w)
	}

	e.metrics.setQueues(e.pending.Len(), len(e.visible))
	e.metrics.observeTick(time.Since(start).Seconds())
}

// applyDrain queues a drain result. A window that moved backward, or forward
// by more than the tolerance, is a seek: everything pending is stale and goes
// first.
//
// Forced results skip the seek check and leave the recorded window alone.
// Their clock reading races with Tick and may be older than the last tick's.
func (e *Engine) applyDrain(r drainResult) {
	if r.forced {
		e.drop(r.expired, trace.DropExpired, r.window.Time)
		e.pending.PrependAll(r.agents)
		return
	}
	if e.hasWindow && (r.window.Time < e.window.Time || r.window.Time > e.window.End()+e.cfg.Tolerance) {
		stale := e.pending.Retain(func(*Agent) bool { return false })
		logrus.Infof("seek %.2fs -> %.2fs, discarding %d pending items", e.window.Time, r.window.Time, len(stale))
		e.drop(stale, trace.DropSeek, r.window.Time)
		if e.trace.Enabled() {
			e.trace.RecordSeek(trace.SeekRecord{From: e.window.Time, To: r.window.Time, Cleared: len(stale)})
		}
	}
	e.drop(r.expired, trace.DropExpired, r.window.Time)
	e.pending.PrependAll(r.agents)
	e.window = r.window
	e.hasWindow = true
}

// ageVisible shortens every visible agent's lifetime by one interval and
// recycles the ones that ran out.
func (e *Engine) ageVisible(w TimeWindow) {
	var ended []*Agent
	kept := e.visible[:0]
	for _, a := range e.visible {
		a.Remaining -= w.Interval
		if a.Remaining <= lifetimeEpsilon {
			ended = append(ended, a)
		} else {
			kept = append(kept, a)
		}
	}
	clear(e.visible[len(kept):])
	e.visible = kept
	e.recycle(ended)
}

// promote walks the pending queue front to back and places what fits.
//
// A kind that fails placement is saturated for the rest of the pass. Once the
// visible set reaches MaxVisible or every kind is saturated, only forced
// agents are still tried; they skip capacity and saturation bookkeeping but
// still pass through ShouldRender.
func (e *Engine) promote(w TimeWindow, bounds Size) {
	var saturated [numKinds]bool
	nSaturated := 0
	exhausted := false

	e.pending.Retain(func(a *Agent) bool {
		if a.Forced {
			if !e.delegate.ShouldRender(a.Item) {
				return true
			}
			return !e.place(a, w, bounds)
		}
		if exhausted {
			return true
		}
		if e.cfg.MaxVisible > 0 && len(e.visible) >= e.cfg.MaxVisible {
			exhausted = true
			return true
		}
		k := a.Item.Kind
		if saturated[k] {
			return true
		}
		if !e.delegate.ShouldRender(a.Item) {
			return true
		}
		if e.place(a, w, bounds) {
			return false
		}
		saturated[k] = true
		nSaturated++
		exhausted = nSaturated == numKinds
		e.metrics.incSaturation(k)
		if e.trace.Enabled() {
			e.trace.RecordSaturation(trace.SaturationRecord{Clock: w.Time, Kind: k.String()})
		}
		return true
	})
}

// place assigns a lane and, on success, moves a into the visible set and
// hands it to the presenter.
func (e *Engine) place(a *Agent, w TimeWindow, bounds Size) bool {
	k := a.Item.Kind
	policy := e.policies[k]
	a.Size = Size{W: e.dataSource.WidthFor(a.Item), H: e.cfg.CellHeight}
	lane, ok := assignLane(a, policy, e.retainers[k], bounds, e.lanesRNG)
	if !ok {
		return false
	}
	waited := e.toleranceTicks - a.Tolerance
	a.Lane = lane
	a.Position = policy.Origin(lane, a.Size, bounds)
	a.Tolerance = 0
	e.visible = append(e.visible, a)

	e.metrics.incPromoted(k)
	if e.trace.Enabled() {
		e.trace.RecordPromotion(trace.PromotionRecord{
			ItemID: a.Item.ID,
			Clock:  w.Time,
			Kind:   k.String(),
			Lane:   lane,
			Forced: a.Forced,
			Waited: waited,
		})
	}
	logrus.Debugf("[%.2fs] promoted %v", w.Time, a)
	e.show(a)
	return true
}

// show posts the display of a freshly placed agent to the presenter.
func (e *Engine) show(a *Agent) {
	item := a.Item
	frame := a.Frame()
	transit := item.Kind == KindTransit
	to := transitTarget(a)
	seconds := a.Remaining
	e.presenter.Post(func() {
		cell := e.dataSource.CellFor(e, item)
		if cell == nil {
			logrus.Warnf("data source returned no cell for %s", item)
			return
		}
		a.cell = cell
		e.delegate.WillDisplay(cell, item)
		e.renderer.Display(cell, frame)
		if transit {
			e.renderer.Animate(cell, to, seconds)
		}
	})
}

// expirePending counts down every pending agent's tolerance and drops the
// ones that reach zero without being shown.
func (e *Engine) expirePending(w TimeWindow) {
	starved := e.pending.Retain(func(a *Agent) bool {
		a.Tolerance--
		return a.Tolerance > 0
	})
	e.drop(starved, trace.DropTolerance, w.Time)
}

// drop accounts for agents removed without display.
func (e *Engine) drop(agents []*Agent, reason trace.DropReason, clock float64) {
	if len(agents) == 0 {
		return
	}
	e.metrics.addDropped(reason, len(agents))
	if e.trace.Enabled() {
		for _, a := range agents {
			e.trace.RecordDrop(trace.DropRecord{
				ItemID: a.Item.ID,
				Clock:  clock,
				Kind:   a.Item.Kind.String(),
				Reason: reason,
			})
		}
	}
	logrus.Debugf("[%.2fs] dropped %d items (%s)", clock, len(agents), reason)
}

// recycle releases agents whose display ended. Bookkeeping is cleared here on
// the worker; the cell is detached, pooled and reported on the presenter.
func (e *Engine) recycle(agents []*Agent) {
	if len(agents) == 0 {
		return
	}
	for _, a := range agents {
		a.Lane = -1
		a.Remaining = 0
	}
	e.metrics.addRecycled(len(agents))
	e.presenter.Post(func() {
		for _, a := range agents {
			cell := a.cell
			if cell == nil {
				continue
			}
			a.cell = nil
			e.renderer.Remove(cell)
			e.pool.Release(cell)
			e.delegate.DidEndDisplay(cell, a.Item)
		}
	})
}
