// Package schedule provides a cancelable deferred-task abstraction so that
// debounce behavior can be driven by a virtual clock in tests instead of
// ambient timers.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Task is a cancelable scheduled function.
type Task interface {
	// Cancel stops the task if it has not fired yet. It reports whether
	// the cancellation prevented the task from running.
	Cancel() bool
}

// Scheduler defers a function by a duration.
type Scheduler interface {
	// AfterFunc runs fn after d has elapsed, returning a handle that can
	// cancel the pending run.
	AfterFunc(d time.Duration, fn func()) Task
}

// timerScheduler is the production scheduler backed by time.AfterFunc.
type timerScheduler struct{}

// NewTimerScheduler returns the real-time scheduler.
func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) Task {
	return timerTask{timer: time.AfterFunc(d, fn)}
}

type timerTask struct {
	timer *time.Timer
}

func (t timerTask) Cancel() bool {
	return t.timer.Stop()
}

// ManualScheduler is a deterministic scheduler for tests. Tasks fire only
// when Advance moves the virtual clock past their deadline.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	next  int
	tasks map[int]*manualTask
}

// NewManualScheduler creates a manual scheduler starting at a fixed epoch.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		now:   time.Unix(0, 0),
		tasks: make(map[int]*manualTask),
	}
}

type manualTask struct {
	sched    *ManualScheduler
	id       int
	deadline time.Time
	fn       func()
}

func (t *manualTask) Cancel() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if _, pending := t.sched.tasks[t.id]; !pending {
		return false
	}
	delete(t.sched.tasks, t.id)
	return true
}

// AfterFunc registers fn to fire once the virtual clock reaches now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{sched: s, id: s.next, deadline: s.now.Add(d), fn: fn}
	s.tasks[s.next] = t
	s.next++
	return t
}

// Advance moves the virtual clock forward and fires every task whose
// deadline has passed, in deadline order. Tasks run without the lock held
// so they may schedule followups.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)

	var due []*manualTask
	for id, t := range s.tasks {
		if !t.deadline.After(s.now) {
			due = append(due, t)
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of tasks waiting to fire.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
