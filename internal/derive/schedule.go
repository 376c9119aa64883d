package derive

import (
	"time"

	"projectflow/internal/model"
)

// DefaultUpcomingDays is the look-ahead window of the dashboard.
const DefaultUpcomingDays = 7

// dateKey compares calendar dates independent of location: a deadline read
// from a DATE column is UTC midnight while "today" is local.
func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Overdue returns open tasks whose deadline is before today, earliest first.
func Overdue(tasks []model.Task, today time.Time) []model.Task {
	cutoff := dateKey(today)
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if t.Deadline == nil || t.Status == model.TaskCompleted {
			continue
		}
		if dateKey(*t.Deadline) < cutoff {
			out = append(out, t)
		}
	}
	return Sort(out, model.SortDeadline)
}

// Upcoming returns open tasks due between today and today+days inclusive,
// earliest first. The result is unbounded; use Limit for display.
func Upcoming(tasks []model.Task, today time.Time, days int) []model.Task {
	if days < 0 {
		days = 0
	}
	from := dateKey(today)
	to := dateKey(today.AddDate(0, 0, days))
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if t.Deadline == nil || t.Status == model.TaskCompleted {
			continue
		}
		k := dateKey(*t.Deadline)
		if k >= from && k <= to {
			out = append(out, t)
		}
	}
	return Sort(out, model.SortDeadline)
}

// IsOverdue reports whether a single task is past due on today.
func IsOverdue(t model.Task, today time.Time) bool {
	return t.Deadline != nil && t.Status != model.TaskCompleted && dateKey(*t.Deadline) < dateKey(today)
}
