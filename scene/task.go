package scene

import "time"

// RepeatingTask fires once per interval of accumulated frame time. It is
// owned by a single entity and cancelled together with it, so a removed
// owner can never be the target of a late firing.
type RepeatingTask struct {
	interval  time.Duration
	elapsed   time.Duration
	cancelled bool
}

// NewRepeatingTask returns a task with the given period. A non-positive
// interval yields a task that never fires.
func NewRepeatingTask(interval time.Duration) *RepeatingTask {
	return &RepeatingTask{interval: interval}
}

// Advance accumulates d and reports whether the task fired. Backlog from
// long frames is dropped: at most one firing per call.
func (t *RepeatingTask) Advance(d time.Duration) bool {
	if t == nil || t.cancelled || t.interval <= 0 {
		return false
	}
	t.elapsed += d
	if t.elapsed < t.interval {
		return false
	}
	t.elapsed %= t.interval
	return true
}

// Cancel stops the task permanently.
func (t *RepeatingTask) Cancel() {
	if t != nil {
		t.cancelled = true
	}
}

// Cancelled reports whether Cancel has been called.
func (t *RepeatingTask) Cancelled() bool {
	return t == nil || t.cancelled
}
