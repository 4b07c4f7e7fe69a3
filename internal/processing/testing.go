package processing

import "time"

// SetClock is a test helper that overrides the service clock so completion
// timestamps can be asserted deterministically.
func SetClock(s *Service, now func() time.Time) {
	s.now = now
}
