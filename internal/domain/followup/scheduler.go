package followup

import "time"

// IntervalDays is the gap between a measurement and the next one.
const IntervalDays = 30

// NextDueDate returns the re-measurement date for a measurement taken on
// lastMeasuredOn.
func NextDueDate(lastMeasuredOn time.Time) time.Time {
	return lastMeasuredOn.AddDate(0, 0, IntervalDays)
}
