// Package sched provides small clock and timer abstractions so state
// transitions driven by delays (deferred removals, promotion refreshes,
// notification countdowns) can be tested under virtual time.
package sched

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Handle refers to a scheduled task and allows cancelling it.
type Handle interface {
	// Stop cancels the task. It reports whether the task was still pending.
	Stop() bool
}

// Scheduler runs a function once after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Handle
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// TimerScheduler schedules tasks on real timers.
type TimerScheduler struct{}

// AfterFunc arms a timer that invokes fn after d.
func (TimerScheduler) AfterFunc(d time.Duration, fn func()) Handle {
	return timerHandle{timer: time.AfterFunc(d, fn)}
}

type timerHandle struct{ timer *time.Timer }

func (h timerHandle) Stop() bool { return h.timer.Stop() }

// ManualClock is a Clock whose time only moves when advanced explicitly.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a manual clock starting at the provided instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// set moves the clock to t. The clock never runs backwards.
func (c *ManualClock) set(t time.Time) {
	c.mu.Lock()
	if t.After(c.now) {
		c.now = t
	}
	c.mu.Unlock()
}

// ManualScheduler queues tasks and fires them when time is advanced. It shares
// an instant with its ManualClock so tests observe a consistent timeline.
type ManualScheduler struct {
	mu    sync.Mutex
	clock *ManualClock
	tasks []*manualTask
}

// NewManualScheduler builds a scheduler bound to the provided manual clock.
func NewManualScheduler(clock *ManualClock) *ManualScheduler {
	return &ManualScheduler{clock: clock}
}

type manualTask struct {
	due     time.Time
	fn      func()
	stopped bool
	sched   *ManualScheduler
}

func (t *manualTask) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// AfterFunc registers fn to run once the clock has advanced past d.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &manualTask{due: s.clock.Now().Add(d), fn: fn, sched: s}
	s.tasks = append(s.tasks, task)
	return task
}

// Advance moves the clock forward and runs every task that became due,
// in due-time order. The clock steps to each task's due time before the
// task runs, so tasks scheduled by running tasks fire within the same
// advance window when their delay fits.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.clock.Now().Add(d)
	for {
		task := s.nextDue(target)
		if task == nil {
			break
		}
		s.clock.set(task.due)
		task.fn()
	}
	s.clock.set(target)
}

func (s *ManualScheduler) nextDue(limit time.Time) *manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var picked *manualTask
	idx := -1
	for i, t := range s.tasks {
		if t.stopped || t.due.After(limit) {
			continue
		}
		if picked == nil || t.due.Before(picked.due) {
			picked = t
			idx = i
		}
	}
	if picked == nil {
		return nil
	}
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	return picked
}

// Pending reports the number of tasks that have not fired or been stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}
