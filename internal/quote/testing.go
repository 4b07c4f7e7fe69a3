package quote

import "time"

// SetClock is a test helper that overrides the service clock so expiry
// behavior can be exercised deterministically.
func SetClock(s *Service, now func() time.Time) {
	s.now = now
}
