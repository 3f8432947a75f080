package editor

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the quiet period before a re-evaluation runs.
const DefaultDebounceWindow = 300 * time.Millisecond

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Debouncer runs the most recently triggered function once the window has
// passed without another Trigger. A newer Trigger replaces the pending one.
type Debouncer struct {
	clock  Clock
	window time.Duration

	mu    sync.Mutex
	timer Timer
	seq   uint64
}

// NewDebouncer creates a Debouncer. A nil clock means RealClock; a
// non-positive window means DefaultDebounceWindow.
func NewDebouncer(window time.Duration, clock Clock) *Debouncer {
	if clock == nil {
		clock = RealClock
	}
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{clock: clock, window: window}
}

// Window returns the quiet period.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Trigger schedules fn, superseding any pending function.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	token := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.window, func() {
		d.mu.Lock()
		// A timer that fired while being replaced must not run.
		if d.seq != token {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Pending reports whether a function is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel drops the pending function, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
