package danmaku

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Source produces agents for the engine. Implementations must be safe for
// Submit/SubmitMany from producer goroutines concurrent with Drain from the
// engine's drain slot.
type Source interface {
	// Ingest bulk-loads items and calls onReady once they can be drained.
	Ingest(items []*Item, onReady func())
	// Submit enqueues a single item.
	Submit(item *Item, forced bool)
	// SubmitMany enqueues items in bulk.
	SubmitMany(items []*Item)
	// Drain returns and removes the agents due for window w. Returns nil when
	// nothing is due.
	Drain(w TimeWindow) []*Agent
}

// NewSource creates the Source for a mode.
// Valid modes: "batch" (default), "live". Panics on unrecognized modes.
func NewSource(mode Mode) Source {
	if !IsValidMode(string(mode)) {
		panic(fmt.Sprintf("unknown source mode %q", mode))
	}
	switch mode {
	case "", ModeBatch:
		return &BatchSource{}
	case ModeLive:
		return &LiveSource{}
	default:
		panic(fmt.Sprintf("unhandled source mode %q", mode))
	}
}

// BatchSource holds a time-ordered list of items for on-demand playback.
type BatchSource struct {
	mu     sync.Mutex
	agents []*Agent // sorted by Item.Time, stable
}

// Ingest replaces the contents with items sorted by time and calls onReady
// synchronously; the data is already in memory.
func (s *BatchSource) Ingest(items []*Item, onReady func()) {
	agents := make([]*Agent, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		agents = append(agents, NewAgent(it, false))
	}
	sort.SliceStable(agents, func(i, j int) bool {
		return agents[i].Item.Time < agents[j].Item.Time
	})

	s.mu.Lock()
	s.agents = agents
	s.mu.Unlock()

	logrus.Debugf("batch source ingested %d items", len(agents))
	if onReady != nil {
		onReady()
	}
}

// Submit inserts the item in time order, after items with an equal time.
func (s *BatchSource) Submit(item *Item, forced bool) {
	if item == nil {
		return
	}
	a := NewAgent(item, forced)
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := sort.Search(len(s.agents), func(i int) bool {
		return s.agents[i].Item.Time > item.Time
	})
	s.agents = append(s.agents, nil)
	copy(s.agents[idx+1:], s.agents[idx:])
	s.agents[idx] = a
}

// SubmitMany inserts each item in time order.
func (s *BatchSource) SubmitMany(items []*Item) {
	for _, it := range items {
		s.Submit(it, false)
	}
}

// Drain returns and removes every remaining agent scheduled before w.End().
// Agents earlier than w.Time are included so a late or skipped tick does not
// strand them; the engine discards the ones whose display time has passed.
func (s *BatchSource) Drain(w TimeWindow) []*Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := w.End()
	idx := sort.Search(len(s.agents), func(i int) bool {
		return s.agents[i].Item.Time >= end
	})
	if idx == 0 {
		return nil
	}
	due := make([]*Agent, idx)
	copy(due, s.agents[:idx])
	rest := make([]*Agent, len(s.agents)-idx)
	copy(rest, s.agents[idx:])
	s.agents = rest
	return due
}

// Len returns the number of agents not yet drained.
func (s *BatchSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agents)
}

// submitChunk bounds how many agents LiveSource appends per critical section.
const submitChunk = 100

// LiveSource is an unbounded append-only stream; every Drain takes everything.
type LiveSource struct {
	buf agentBuffer
}

// Ingest is a no-op: a live stream has no pre-existing data. onReady is still
// called so LoadItems completes.
func (s *LiveSource) Ingest(items []*Item, onReady func()) {
	if len(items) > 0 {
		logrus.Warnf("live source ignores %d preloaded items; use SubmitMany", len(items))
	}
	if onReady != nil {
		onReady()
	}
}

// Submit appends one item.
func (s *LiveSource) Submit(item *Item, forced bool) {
	if item == nil {
		return
	}
	s.buf.appendBatch([]*Agent{NewAgent(item, forced)})
}

// SubmitMany appends items in chunks of submitChunk so concurrent drains are
// never held off for long. The last partial chunk is always flushed.
func (s *LiveSource) SubmitMany(items []*Item) {
	chunk := make([]*Agent, 0, submitChunk)
	for _, it := range items {
		if it == nil {
			continue
		}
		chunk = append(chunk, NewAgent(it, false))
		if len(chunk) == submitChunk {
			s.buf.appendBatch(chunk)
			chunk = make([]*Agent, 0, submitChunk)
		}
	}
	if len(chunk) > 0 {
		s.buf.appendBatch(chunk)
	}
}

// Drain swaps out the whole buffer. The window is ignored: live items are
// shown as soon as possible.
func (s *LiveSource) Drain(_ TimeWindow) []*Agent {
	return s.buf.drainAll()
}

// Len returns the number of buffered agents.
func (s *LiveSource) Len() int {
	return s.buf.len()
}

// agentBuffer is a mutex-guarded append/drain-all buffer. Appends hold the lock
// for O(batch); drainAll swaps the slice header.
type agentBuffer struct {
	mu     sync.Mutex
	agents []*Agent
}

func (b *agentBuffer) appendBatch(agents []*Agent) {
	b.mu.Lock()
	b.agents = append(b.agents, agents...)
	b.mu.Unlock()
}

func (b *agentBuffer) drainAll() []*Agent {
	b.mu.Lock()
	out := b.agents
	b.agents = nil
	b.mu.Unlock()
	return out
}

func (b *agentBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.agents)
}
