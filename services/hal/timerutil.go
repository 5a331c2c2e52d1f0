// services/hal/timerutil.go
package hal

import "time"

// resetTimer re-arms a timer for d from now. The timer must be owned by the
// calling loop; a pending fire that raced Stop is swallowed so the loop never
// sees a stale tick. Negative durations fire immediately.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		drainTimer(t)
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}

// drainTimer empties the timer channel without blocking.
func drainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
