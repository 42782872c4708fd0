// Package keepalive provides a suspendable periodic trigger used to emit websocket pings.
//
// The timer is self-rescheduling: the next tick is armed only once the action of the current
// tick has returned, so a slow action delays the following ticks instead of piling them up.
package keepalive

import (
	"fmt"
	"sync"
	"time"
)

// Timer state
type State int

const (
	// The timer is disarmed. No tick will run the action.
	Suspended State = iota
	// The timer is armed and runs the action every period.
	Resumed
)

func (s State) String() string {
	if s == Resumed {
		return "resumed"
	}
	return "suspended"
}

// Suspendable and resumable periodic trigger.
//
// All methods are safe for concurrent use. The action runs on a timer goroutine, one tick at a
// time, without any lock held: it may call any method of the timer.
type Timer struct {
	// Interval between the end of a tick and the next one
	period time.Duration
	// Action run on each tick. Released by Stop.
	action func()
	// Current state
	state State
	// Set once Stop has been called
	stopped bool
	// Pending tick, if any
	timer *time.Timer
	// Incremented each time pending ticks must be invalidated
	generation uint64
	// Internal mutex
	mu sync.Mutex
}

// # Description
//
// Create a timer in the Resumed state: the first tick runs the action after one period.
//
// # Inputs
//
//   - period: Interval between ticks. Must be strictly positive.
//   - action: Action run on each tick. Can be nil.
//
// # Panics
//
// If period is not strictly positive.
func New(period time.Duration, action func()) *Timer {
	t := NewSuspended(period, action)
	t.Resume()
	return t
}

// # Description
//
// Create a timer in the Suspended state. Call Resume to arm it.
//
// # Panics
//
// If period is not strictly positive.
func NewSuspended(period time.Duration, action func()) *Timer {
	if period <= 0 {
		panic(fmt.Sprintf("keepalive: non-positive period %v", period))
	}
	return &Timer{
		period: period,
		action: action,
		state:  Suspended,
	}
}

// Arm the timer: the next tick occurs one period from now. No-op if already Resumed or stopped.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Resumed || t.stopped {
		return
	}
	t.state = Resumed
	t.generation++
	t.arm(t.generation)
}

// Disarm the timer. A tick already executing completes and no further tick follows. No-op if
// already Suspended.
func (t *Timer) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Suspended {
		return
	}
	t.disarm()
}

// # Description
//
// Disarm the timer and release the action. Valid from any state and idempotent. A tick already
// executing completes. Once Stop returns, no new tick runs the action and Resume is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.disarm()
	t.stopped = true
	t.action = nil
}

// Return the current state of the timer.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Return the interval between ticks.
func (t *Timer) Period() time.Duration {
	return t.period
}

// Schedule a tick for the provided generation. Must be called with mu held.
func (t *Timer) arm(generation uint64) {
	t.timer = time.AfterFunc(t.period, func() { t.tick(generation) })
}

// Invalidate pending ticks and go Suspended. Must be called with mu held.
func (t *Timer) disarm() {
	t.state = Suspended
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Run the action if the tick is still valid, then schedule the next one.
func (t *Timer) tick(generation uint64) {
	t.mu.Lock()
	if generation != t.generation || t.state != Resumed {
		t.mu.Unlock()
		return
	}
	action := t.action
	t.mu.Unlock()

	if action != nil {
		action()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if generation == t.generation && t.state == Resumed {
		t.arm(generation)
	}
}
