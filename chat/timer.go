package chat

import (
	"sync"
	"time"
)

// DebounceTimer is a cancellable delayed call used for search debounce and
// hover intent. Starting (or resetting) while a fire is pending supersedes
// it: only the most recent schedule can fire, never both.
//
// The zero value is ready to use.
type DebounceTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// Start schedules fn to run after delay, superseding any pending schedule.
func (d *DebounceTimer) Start(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		current := seq == d.seq
		d.mu.Unlock()
		// A fire that raced with a Stop still observes the stale seq and
		// drops itself here.
		if current {
			fn()
		}
	})
}

// Reset is Start under its conventional name for the restart-on-keystroke
// use case.
func (d *DebounceTimer) Reset(delay time.Duration, fn func()) {
	d.Start(delay, fn)
}

// Cancel drops any pending schedule. Safe to call when nothing is pending.
func (d *DebounceTimer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
