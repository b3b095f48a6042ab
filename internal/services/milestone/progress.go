package milestone

import "math"

// Progress returns the completion percentage for a milestone with the given
// task counts, rounded to two decimal places. A milestone with no tasks has
// zero progress.
func Progress(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*10000) / 100
}

// ShouldAutoComplete reports whether the milestone should flip to completed.
// The decision is made on the raw counts, never on the rounded percentage,
// so a milestone whose progress rounds to 100.00 while a task is still open
// stays in its current status. Cancelled tasks count as open.
func ShouldAutoComplete(status Status, completed, total int) bool {
	return total > 0 && completed == total && status != StatusCompleted
}
