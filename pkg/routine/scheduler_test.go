package routine

import (
	"errors"
	"testing"
	"time"
)

// future returns a process time far enough ahead that every queued routine
// armed with interval d is due at least n times over.
func future(d time.Duration, n int) time.Time {
	return time.Now().Add(d * time.Duration(n+1))
}

func TestSchedulerFiresDueRoutines(t *testing.T) {
	s := NewScheduler()
	var calls int
	var gotArgs []any
	_, err := s.New("pulse", time.Second, 0, func(args []any) error {
		calls++
		gotArgs = args
		return nil
	}, "hello", 42)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if fired := s.Process(time.Now()); fired != 0 {
		t.Errorf("Process before due fired %d", fired)
	}
	if fired := s.Process(future(time.Second, 1)); fired != 1 {
		t.Errorf("Process fired %d, want 1", fired)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times", calls)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "hello" || gotArgs[1] != 42 {
		t.Errorf("callback args = %v", gotArgs)
	}
}

func TestSchedulerIterationBudget(t *testing.T) {
	s := NewScheduler()
	var calls int
	r, err := s.New("burst", time.Second, 3, func(args []any) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 1; i <= 5; i++ {
		s.Process(future(time.Second, i))
	}
	if calls != 3 {
		t.Errorf("callback ran %d times, want 3", calls)
	}
	if !r.Terminated() {
		t.Error("routine still queued after spending its budget")
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d, want 0", s.Count())
	}
}

func TestSchedulerSuspendSkipsWithoutSpending(t *testing.T) {
	s := NewScheduler()
	var calls int
	r, _ := s.New("nap", time.Second, 2, func(args []any) error {
		calls++
		return nil
	})

	r.Suspend()
	s.Process(future(time.Second, 1))
	s.Process(future(time.Second, 2))
	if calls != 0 {
		t.Errorf("suspended routine ran %d times", calls)
	}
	if r.Iterations() != 2 {
		t.Errorf("iterations = %d, suspension must not spend the budget", r.Iterations())
	}

	r.Resume()
	s.Process(future(time.Second, 3))
	if calls != 1 {
		t.Errorf("resumed routine ran %d times, want 1", calls)
	}
}

func TestSchedulerErrorTerminates(t *testing.T) {
	s := NewScheduler()
	var reportedTag string
	var reportedErr error
	s.SetOnError(func(tag string, err error) {
		reportedTag, reportedErr = tag, err
	})

	boom := errors.New("script exploded")
	r, _ := s.New("fragile", time.Second, 0, func(args []any) error {
		return boom
	})

	s.Process(future(time.Second, 1))
	if !r.Terminated() {
		t.Error("failing routine was not terminated")
	}
	if reportedTag != "fragile" || !errors.Is(reportedErr, boom) {
		t.Errorf("reported %q/%v", reportedTag, reportedErr)
	}
}

func TestSchedulerEndureSurvivesErrors(t *testing.T) {
	s := NewScheduler()
	var calls int
	r, _ := s.New("tough", time.Second, 0, func(args []any) error {
		calls++
		return errors.New("still standing")
	})
	r.SetEndure(true)

	s.Process(future(time.Second, 1))
	s.Process(future(time.Second, 2))
	if calls != 2 {
		t.Errorf("enduring routine ran %d times, want 2", calls)
	}
	if r.Terminated() {
		t.Error("enduring routine was terminated")
	}
}

func TestSchedulerQuietSuppressesReports(t *testing.T) {
	s := NewScheduler()
	reported := false
	s.SetOnError(func(tag string, err error) { reported = true })

	r, _ := s.New("hush", time.Second, 0, func(args []any) error {
		return errors.New("nobody hears this")
	})
	r.SetQuiet(true)

	s.Process(future(time.Second, 1))
	if reported {
		t.Error("quiet routine reported its error")
	}
}

func TestSchedulerPanicContained(t *testing.T) {
	s := NewScheduler()
	var reportedErr error
	s.SetOnError(func(tag string, err error) { reportedErr = err })

	r, _ := s.New("wild", time.Second, 0, func(args []any) error {
		panic("loose pointer")
	})
	s.Process(future(time.Second, 1))
	if !r.Terminated() {
		t.Error("panicking routine was not terminated")
	}
	if reportedErr == nil {
		t.Error("panic was not reported as an error")
	}
}

func TestSchedulerTerminateFromCallback(t *testing.T) {
	s := NewScheduler()
	var r *Routine
	var calls int
	r, _ = s.New("self", time.Second, 0, func(args []any) error {
		calls++
		r.Terminate()
		return nil
	})

	s.Process(future(time.Second, 1))
	s.Process(future(time.Second, 2))
	if calls != 1 {
		t.Errorf("self-terminating routine ran %d times", calls)
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d after self-terminate", s.Count())
	}
}

func TestSchedulerCreateFromCallback(t *testing.T) {
	s := NewScheduler()
	_, err := s.New("spawner", time.Second, 1, func(args []any) error {
		_, err := s.New("child", time.Second, 1, func([]any) error { return nil })
		return err
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Process(future(time.Second, 1))
	if _, ok := s.FindByTag("child"); !ok {
		t.Error("routine created from a callback is not queued")
	}
}

func TestSchedulerRejectsBadArguments(t *testing.T) {
	s := NewScheduler()
	if _, err := s.New("zero", 0, 0, func([]any) error { return nil }); err == nil {
		t.Error("zero interval accepted")
	}
	if _, err := s.New("nofn", time.Second, 0, nil); err == nil {
		t.Error("nil callback accepted")
	}
	args := make([]any, MaxArgs+1)
	if _, err := s.New("fat", time.Second, 0, func([]any) error { return nil }, args...); err == nil {
		t.Error("oversized argument pack accepted")
	}
	if _, err := s.New("neg", time.Second, -1, func([]any) error { return nil }); err == nil {
		t.Error("negative iterations accepted")
	}
}

func TestSchedulerFindAndClear(t *testing.T) {
	s := NewScheduler()
	s.New("a", time.Second, 0, func([]any) error { return nil })
	s.New("b", time.Second, 0, func([]any) error { return nil })
	if s.Count() != 2 {
		t.Fatalf("Count = %d", s.Count())
	}
	if _, ok := s.FindByTag("a"); !ok {
		t.Error("FindByTag missed a queued routine")
	}
	s.Clear()
	if s.Count() != 0 {
		t.Errorf("Count = %d after Clear", s.Count())
	}
}
