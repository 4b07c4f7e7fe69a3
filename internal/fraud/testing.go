package fraud

import "time"

// SetClock is a test helper that overrides the engine clock so window
// boundaries can be exercised deterministically.
func SetClock(e *Engine, now func() time.Time) {
	e.now = now
}
