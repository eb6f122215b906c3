// Implements the PendingQueue, which holds agents drained from a Source that
// have not been given a lane yet.

package danmaku

import (
	"fmt"
	"strings"
)

// PendingQueue is the front-ordered queue of agents waiting for promotion.
// Fresh drains are prepended, so the most recent window sits at the front and
// is tried first. Owned by the engine's serialized runner; not thread-safe.
type PendingQueue struct {
	queue []*Agent
}

// PrependAll inserts agents at the front, keeping their relative order.
func (pq *PendingQueue) PrependAll(agents []*Agent) {
	if len(agents) == 0 {
		return
	}
	merged := make([]*Agent, 0, len(agents)+len(pq.queue))
	merged = append(merged, agents...)
	pq.queue = append(merged, pq.queue...)
}

// Len returns the number of pending agents.
func (pq *PendingQueue) Len() int {
	return len(pq.queue)
}

// Peek returns the front agent without removing it, or nil when empty.
func (pq *PendingQueue) Peek() *Agent {
	if len(pq.queue) == 0 {
		return nil
	}
	return pq.queue[0]
}

// Items returns the queue contents front to back.
// The returned slice is the queue's internal storage: callers may iterate
// but MUST NOT append to or reslice it. Use Retain to remove entries.
func (pq *PendingQueue) Items() []*Agent {
	return pq.queue
}

// Retain keeps the agents for which keep returns true, preserving order, and
// returns the removed ones. keep is called once per agent, front to back.
func (pq *PendingQueue) Retain(keep func(*Agent) bool) []*Agent {
	if keep == nil {
		panic("Retain: keep must not be nil")
	}
	var removed []*Agent
	kept := pq.queue[:0]
	for _, a := range pq.queue {
		if keep(a) {
			kept = append(kept, a)
		} else {
			removed = append(removed, a)
		}
	}
	for i := len(kept); i < len(pq.queue); i++ {
		pq.queue[i] = nil
	}
	pq.queue = kept
	return removed
}

// Clear drops every pending agent and returns how many were dropped.
func (pq *PendingQueue) Clear() int {
	n := len(pq.queue)
	pq.queue = nil
	return n
}

func (pq *PendingQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, a := range pq.queue {
		sb.WriteString(fmt.Sprint(a.Item))
		if i < len(pq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
