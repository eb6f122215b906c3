package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunner_RunsTasksInPostOrder(t *testing.T) {
	// GIVEN a runner and 100 tasks posted from one goroutine
	r := NewRunner("test")
	defer r.Close()
	var got []int
	for i := 0; i < 100; i++ {
		i := i // per-iteration copy; go directive is 1.21 (pre-1.22 loop semantics)
		r.Post(func() { got = append(got, i) })
	}

	// WHEN the runner drains
	r.WaitIdle()

	// THEN tasks ran in post order
	assert.Len(t, got, 100)
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestRunner_NeverRunsTasksConcurrently(t *testing.T) {
	r := NewRunner("test")
	defer r.Close()
	var active, overlaps atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Post(func() {
					if active.Add(1) > 1 {
						overlaps.Add(1)
					}
					active.Add(-1)
				})
			}
		}()
	}
	wg.Wait()
	r.WaitIdle()

	assert.Zero(t, overlaps.Load())
	assert.True(t, r.Idle())
}

func TestRunner_PostAndWait_BlocksUntilRun(t *testing.T) {
	r := NewRunner("test")
	defer r.Close()
	ran := false

	ok := r.PostAndWait(func() { ran = true })

	assert.True(t, ok)
	assert.True(t, ran)
}

func TestRunner_PanickingTask_DoesNotStopRunner(t *testing.T) {
	// GIVEN a task that panics followed by a normal task
	r := NewRunner("test")
	defer r.Close()
	r.Post(func() { panic("boom") })

	// WHEN another task is posted
	ran := r.PostAndWait(func() {})

	// THEN it still runs
	assert.True(t, ran)
}

func TestRunner_Close_RunsQueuedThenRejects(t *testing.T) {
	// GIVEN tasks queued behind a blocked task
	r := NewRunner("test")
	gate := make(chan struct{})
	var count atomic.Int32
	r.Post(func() { <-gate })
	for i := 0; i < 5; i++ {
		r.Post(func() { count.Add(1) })
	}

	// WHEN the runner is closed
	go close(gate)
	r.Close()

	// THEN queued tasks ran and later posts are rejected
	assert.Equal(t, int32(5), count.Load())
	assert.False(t, r.Post(func() {}))
	assert.False(t, r.PostAndWait(func() {}))
	r.Close()
}
