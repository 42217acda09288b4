package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// ParseMode maps "realtime" and "accelerated" onto a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "realtime", "real-time":
		return RealTime, true
	case "accelerated", "fast":
		return Accelerated, true
	default:
		return RealTime, false
	}
}

// Frame describes one tick delivered to listeners.
type Frame struct {
	Time  time.Time     // simulation time after the tick
	Delta time.Duration // simulated time covered by the tick
	Index uint64        // 1-based tick counter
}

// Seconds returns Delta in seconds, the unit the motion model consumes.
func (f Frame) Seconds() float64 { return f.Delta.Seconds() }

// TimeController drives simulation time at a fixed tick and notifies
// registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	index       uint64

	listeners []func(Frame)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(Frame)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Step advances by one tick on the caller's goroutine and notifies
// listeners.
func (tc *TimeController) Step() Frame {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	tc.index++
	f := Frame{Time: tc.currentTime, Delta: tc.Tick, Index: tc.index}
	listeners := append([]func(Frame){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(f)
	}
	return f
}

// Start runs the controller in a separate goroutine until duration of
// simulated time has elapsed (duration <= 0 means forever) or ctx is
// cancelled. It returns a channel that is closed when the controller
// finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		tc.currentTime = tc.StartTime
		tc.index = 0
		tc.mu.Unlock()

		var tick <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tick = ticker.C
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}

			tc.Step()
			elapsed += tc.Tick
		}
	}()
	return done
}

// DeltaClock measures variable frame deltas against a wall clock. The
// interactive frontend uses it where frames are not evenly spaced.
type DeltaClock struct {
	now      func() time.Time
	last     time.Time
	maxDelta time.Duration
	started  bool
}

// NewDeltaClock builds a clock reading from now (time.Now when nil).
// Deltas larger than maxDelta are clamped so a stalled frame does not
// teleport drones; maxDelta <= 0 disables clamping.
func NewDeltaClock(now func() time.Time, maxDelta time.Duration) *DeltaClock {
	if now == nil {
		now = time.Now
	}
	return &DeltaClock{now: now, maxDelta: maxDelta}
}

// Delta returns the seconds elapsed since the previous call. The first call
// returns 0. A clock that goes backwards yields 0.
func (c *DeltaClock) Delta() float64 {
	t := c.now()
	if !c.started {
		c.started = true
		c.last = t
		return 0
	}
	d := t.Sub(c.last)
	c.last = t
	if d < 0 {
		return 0
	}
	if c.maxDelta > 0 && d > c.maxDelta {
		d = c.maxDelta
	}
	return d.Seconds()
}
