package scan

import (
	"sync"
	"time"
)

// DefaultWindow is the quiet period that coalesces bursts of changes.
const DefaultWindow = 200 * time.Millisecond

// Debouncer runs only the most recent function scheduled within its window.
// It owns its timer; Close cancels any pending run and waits for a running one.
type Debouncer struct {
	window time.Duration

	// run is held for the whole of a callback so Close can wait it out.
	run sync.Mutex

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	closed bool
}

// NewDebouncer returns a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{window: window}
}

// Trigger schedules fn after the window, replacing any pending schedule.
// It reports false once the debouncer is closed.
func (d *Debouncer) Trigger(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() {
		d.run.Lock()
		defer d.run.Unlock()
		d.mu.Lock()
		current := !d.closed && gen == d.gen
		d.mu.Unlock()
		// a timer that fired while being replaced must not run
		if current {
			fn()
		}
	})
	return true
}

// Close cancels the pending run, if any, and returns once a callback already
// running has finished. Later triggers are ignored. It must not be called
// from inside a scheduled function.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.run.Lock()
	d.run.Unlock()
}
