// Package routine schedules recurring callbacks on the server tick. Scripts
// create routines that fire at fixed intervals for a bounded or unbounded
// number of iterations; the server drives the queue from its tick loop.
package routine

import (
	"fmt"
	"sync"
	"time"
)

// MaxArgs is the most forwarded arguments a routine may carry.
const MaxArgs = 14

// Callback is the function a routine invokes each iteration. The args are
// the values captured at creation time.
type Callback func(args []any) error

// ErrorFunc receives callback failures for routines that are not quiet.
type ErrorFunc func(tag string, err error)

// Routine is one scheduled callback. All mutable state is guarded by the
// owning scheduler's lock.
type Routine struct {
	sched      *Scheduler
	tag        string
	interval   time.Duration
	iterations int // remaining; 0 means run forever
	suspended  bool
	quiet      bool
	endure     bool
	terminated bool
	fn         Callback
	args       []any
	next       time.Time
}

// Tag returns the routine's identifying tag.
func (r *Routine) Tag() string { return r.tag }

// Interval returns the firing interval.
func (r *Routine) Interval() time.Duration { return r.interval }

// Iterations returns the remaining iteration budget (0 = forever).
func (r *Routine) Iterations() int {
	r.sched.mu.Lock()
	defer r.sched.mu.Unlock()
	return r.iterations
}

// Suspended reports whether the routine is paused.
func (r *Routine) Suspended() bool {
	r.sched.mu.Lock()
	defer r.sched.mu.Unlock()
	return r.suspended
}

// Suspend pauses the routine. A suspended routine keeps its queue slot and
// re-arms on schedule without running or consuming iterations.
func (r *Routine) Suspend() { r.setSuspended(true) }

// Resume unpauses the routine.
func (r *Routine) Resume() { r.setSuspended(false) }

func (r *Routine) setSuspended(v bool) {
	r.sched.mu.Lock()
	r.suspended = v
	r.sched.mu.Unlock()
}

// Quiet reports whether callback errors are suppressed.
func (r *Routine) Quiet() bool {
	r.sched.mu.Lock()
	defer r.sched.mu.Unlock()
	return r.quiet
}

// SetQuiet suppresses or restores error reporting.
func (r *Routine) SetQuiet(v bool) {
	r.sched.mu.Lock()
	r.quiet = v
	r.sched.mu.Unlock()
}

// Endure reports whether the routine survives callback errors.
func (r *Routine) Endure() bool {
	r.sched.mu.Lock()
	defer r.sched.mu.Unlock()
	return r.endure
}

// SetEndure makes the routine survive (or stop surviving) callback errors.
func (r *Routine) SetEndure(v bool) {
	r.sched.mu.Lock()
	r.endure = v
	r.sched.mu.Unlock()
}

// Terminated reports whether the routine has been removed from the queue.
func (r *Routine) Terminated() bool {
	r.sched.mu.Lock()
	defer r.sched.mu.Unlock()
	return r.terminated
}

// Terminate removes the routine from the queue. Safe to call from inside
// the routine's own callback.
func (r *Routine) Terminate() {
	r.sched.mu.Lock()
	defer r.sched.mu.Unlock()
	r.sched.removeLocked(r)
}

// Scheduler owns the routine queue. One goroutine (the server tick) calls
// Process; creation and termination may come from script or HTTP goroutines.
type Scheduler struct {
	mu      sync.Mutex
	queue   []*Routine // sorted by next firing time
	onError ErrorFunc
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// SetOnError installs the sink that receives non-quiet callback failures.
func (s *Scheduler) SetOnError(fn ErrorFunc) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// New creates and enqueues a routine. The first firing is one interval from
// now. iterations 0 means run forever.
func (s *Scheduler) New(tag string, interval time.Duration, iterations int, fn Callback, args ...any) (*Routine, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("routine %q: interval must be positive", tag)
	}
	if iterations < 0 {
		return nil, fmt.Errorf("routine %q: iterations must not be negative", tag)
	}
	if fn == nil {
		return nil, fmt.Errorf("routine %q: callback is required", tag)
	}
	if len(args) > MaxArgs {
		return nil, fmt.Errorf("routine %q: argument count (%d) is out of range (%d)", tag, len(args), MaxArgs)
	}
	r := &Routine{
		sched:      s,
		tag:        tag,
		interval:   interval,
		iterations: iterations,
		fn:         fn,
		args:       args,
		next:       time.Now().Add(interval),
	}
	s.mu.Lock()
	s.insertLocked(r)
	s.mu.Unlock()
	return r, nil
}

// FindByTag returns the first queued routine with a matching tag.
func (s *Scheduler) FindByTag(tag string) (*Routine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.queue {
		if r.tag == tag {
			return r, true
		}
	}
	return nil, false
}

// Count returns the number of queued routines.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Clear terminates every routine.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	for _, r := range s.queue {
		r.terminated = true
	}
	s.queue = nil
	s.mu.Unlock()
}

// insertLocked places r in firing order. Caller holds the lock.
func (s *Scheduler) insertLocked(r *Routine) {
	for i, e := range s.queue {
		if r.next.Before(e.next) {
			s.queue = append(s.queue[:i+1], s.queue[i:]...)
			s.queue[i] = r
			return
		}
	}
	s.queue = append(s.queue, r)
}

// removeLocked drops r from the queue. Caller holds the lock.
func (s *Scheduler) removeLocked(r *Routine) {
	if r.terminated {
		return
	}
	r.terminated = true
	for i, e := range s.queue {
		if e == r {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// Process fires every routine that is due at now and re-arms or retires it.
// Callbacks run outside the lock so they may create or terminate routines.
// Returns the number of callbacks invoked.
func (s *Scheduler) Process(now time.Time) int {
	s.mu.Lock()
	var due []*Routine
	for len(s.queue) > 0 && !s.queue[0].next.After(now) {
		due = append(due, s.queue[0])
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()

	fired := 0
	for _, r := range due {
		if s.fire(r, now) {
			fired++
		}
	}
	return fired
}

// fire runs one due routine and decides its fate. It reports whether the
// callback was actually invoked.
func (s *Scheduler) fire(r *Routine, now time.Time) bool {
	s.mu.Lock()
	if r.terminated {
		s.mu.Unlock()
		return false
	}
	if r.suspended {
		// Keep the slot warm without running or spending iterations.
		r.next = now.Add(r.interval)
		s.insertLocked(r)
		s.mu.Unlock()
		return false
	}
	fn, args, quiet, endure := r.fn, r.args, r.quiet, r.endure
	tag := r.tag
	onError := s.onError
	s.mu.Unlock()

	err := protect(fn, args)
	if err != nil {
		if !quiet && onError != nil {
			onError(tag, err)
		}
		if !endure {
			s.mu.Lock()
			r.terminated = true
			s.mu.Unlock()
			return true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r.terminated {
		// The callback terminated its own routine.
		return true
	}
	if r.iterations > 0 {
		r.iterations--
		if r.iterations == 0 {
			r.terminated = true
			return true
		}
	}
	r.next = now.Add(r.interval)
	s.insertLocked(r)
	return true
}

// protect shields the queue from panicking callbacks.
func protect(fn Callback, args []any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("routine callback panicked: %v", rec)
		}
	}()
	return fn(args)
}
