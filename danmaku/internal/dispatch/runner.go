// Package dispatch provides the sequenced task runners the engine uses for its
// serialized mutation context and its presentation context.
package dispatch

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Runner executes posted tasks one at a time, in post order, on a dedicated
// goroutine. State owned by a Runner needs no locks as long as every access is
// a posted task.
//
// Post never blocks on task execution; the queue is unbounded.
type Runner struct {
	name string

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	running bool // a task is executing
	closed  bool

	done chan struct{}
}

// NewRunner starts a runner goroutine. name is used in log lines only.
func NewRunner(name string) *Runner {
	r := &Runner{
		name: name,
		done: make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	go r.loop()
	return r
}

// Post queues task. Returns false if the runner is closed.
func (r *Runner) Post(task func()) bool {
	if task == nil {
		panic("Post: task must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.tasks = append(r.tasks, task)
	r.cond.Broadcast()
	return true
}

// PostAndWait queues task and blocks until it has run. Returns false, without
// running task, if the runner is closed. Must not be called from a task on
// the same runner.
func (r *Runner) PostAndWait(task func()) bool {
	finished := make(chan struct{})
	if !r.Post(func() {
		defer close(finished)
		task()
	}) {
		return false
	}
	<-finished
	return true
}

// Idle reports whether no task is queued or executing.
func (r *Runner) Idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks) == 0 && !r.running
}

// WaitIdle blocks until the queue is empty and no task is executing.
func (r *Runner) WaitIdle() {
	r.mu.Lock()
	for (len(r.tasks) > 0 || r.running) && !r.closed {
		r.cond.Wait()
	}
	r.mu.Unlock()
}

// Close runs the tasks already queued, then stops the goroutine. Later posts
// are rejected. Idempotent.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
	<-r.done
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		r.mu.Lock()
		for len(r.tasks) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.tasks) == 0 && r.closed {
			r.mu.Unlock()
			return
		}
		task := r.tasks[0]
		r.tasks[0] = nil
		r.tasks = r.tasks[1:]
		r.running = true
		r.mu.Unlock()

		r.run(task)

		r.mu.Lock()
		r.running = false
		r.cond.Broadcast()
		r.mu.Unlock()
	}
}

// run executes one task, logging instead of crashing the runner on panic.
func (r *Runner) run(task func()) {
	defer func() {
		if p := recover(); p != nil {
			logrus.Errorf("[%s] task panicked: %v", r.name, p)
		}
	}()
	task()
}
