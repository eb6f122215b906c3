package danmaku

import (
	"sync"
)

// drainRequest asks the drain slot to pull window from the source.
// seq is the engine tick sequence at issue time: the result is applied by the
// first tick with a larger sequence. A forced request comes from Submit rather
// than a tick; its window is not a playback position.
type drainRequest struct {
	window TimeWindow
	seq    uint64
	epoch  uint64
	forced bool
}

// drainResult carries drained agents back to the serialized runner.
type drainResult struct {
	window  TimeWindow
	seq     uint64
	forced  bool
	agents  []*Agent // reset and ready to queue
	expired []*Agent // display time already over when drained
}

// drainSlot runs source drains one at a time on a background goroutine.
// It holds at most one not-yet-started request: a new request replaces it, so
// only the latest window is drained. Completed results wait in a mailbox until
// the serialized runner takes them at the start of a tick.
type drainSlot struct {
	fn func(drainRequest) drainResult

	mu         sync.Mutex
	cond       *sync.Cond
	pending    *drainRequest
	busy       bool
	closed     bool
	epoch      uint64 // bumped by reset; results from older epochs are discarded
	results    []drainResult
	superseded uint64

	done chan struct{}
}

func newDrainSlot(fn func(drainRequest) drainResult) *drainSlot {
	s := &drainSlot{
		fn:   fn,
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// request schedules a drain, replacing a request that has not started.
// A forced request never replaces a waiting tick request: the tick's drain
// takes the forced item too and its window must still be recorded.
// Reports whether an earlier request was superseded.
func (s *drainSlot) request(window TimeWindow, seq uint64, forced bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if forced && s.pending != nil && !s.pending.forced {
		return false
	}
	replaced := s.pending != nil
	if replaced {
		s.superseded++
	}
	s.pending = &drainRequest{window: window, seq: seq, epoch: s.epoch, forced: forced}
	s.cond.Broadcast()
	return replaced
}

// take removes and returns results issued before seq, in completion order.
func (s *drainSlot) take(seq uint64) []drainResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return nil
	}
	var ready, later []drainResult
	for _, r := range s.results {
		if r.seq < seq {
			ready = append(ready, r)
		} else {
			later = append(later, r)
		}
	}
	s.results = later
	return ready
}

// reset cancels the pending request and discards any result not yet taken,
// including the one an in-flight drain is about to post.
func (s *drainSlot) reset() {
	s.mu.Lock()
	s.pending = nil
	s.results = nil
	s.epoch++
	s.cond.Broadcast()
	s.mu.Unlock()
}

// waitIdle blocks until no request is pending or running.
func (s *drainSlot) waitIdle() {
	s.mu.Lock()
	for (s.pending != nil || s.busy) && !s.closed {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

func (s *drainSlot) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending == nil && !s.busy
}

func (s *drainSlot) supersededCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.superseded
}

func (s *drainSlot) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.pending = nil
		s.cond.Broadcast()
	}
	s.mu.Unlock()
	<-s.done
}

func (s *drainSlot) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for s.pending == nil && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		req := *s.pending
		s.pending = nil
		s.busy = true
		s.mu.Unlock()

		res := s.fn(req)

		s.mu.Lock()
		s.busy = false
		if req.epoch == s.epoch {
			s.results = append(s.results, res)
		}
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}
