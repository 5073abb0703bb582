package schedule

import "time"

// NextWindow returns the earliest time at or after now whose UTC hour is
// not in quietHours. The serve loop uses it to defer scheduled ingestion
// out of quiet hours rather than skipping the run outright.
func NextWindow(now time.Time, quietHours []int) time.Time {
	quiet := make(map[int]bool, len(quietHours))
	for _, h := range quietHours {
		quiet[h] = true
	}
	if len(quiet) >= 24 {
		// everything is quiet; do not stall forever
		return now
	}
	cand := now.UTC()
	for i := 0; i < 24; i++ {
		if !quiet[cand.Hour()] {
			return cand
		}
		cand = cand.Truncate(time.Hour).Add(time.Hour)
	}
	return now
}
