// Package derive turns raw entity snapshots into the views the UI renders:
// kanban boards, progress, filtered and sorted lists, overdue and upcoming
// deadlines, and dashboard statistics.
//
// Every function is pure. Inputs are never mutated and outputs are fresh
// slices, so running a derivation twice on the same snapshot yields the same
// ordering.
package derive

import (
	"strings"

	"projectflow/internal/model"
)

type prioritized interface {
	PriorityValue() string
}

// Match reports whether r satisfies every non-empty field of f.
// A priority filter never matches a record without a priority.
func Match(r model.Record, f model.Filter) bool {
	if f.Status != "" && r.StatusValue() != f.Status {
		return false
	}
	if f.Priority != "" {
		p, ok := r.(prioritized)
		if !ok || p.PriorityValue() != f.Priority {
			return false
		}
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		if !strings.Contains(strings.ToLower(r.Label()), strings.ToLower(search)) {
			return false
		}
	}
	return true
}

// Filter keeps the items matching f, in input order.
func Filter[T model.Record](items []T, f model.Filter) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if Match(it, f) {
			out = append(out, it)
		}
	}
	return out
}

// FilterTasks applies the project/milestone/assignee scope and the filter.
func FilterTasks(tasks []model.Task, q model.TaskQuery) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if q.ProjectID != "" && t.ProjectID != q.ProjectID {
			continue
		}
		if q.MilestoneID != "" && !t.InMilestone(q.MilestoneID) {
			continue
		}
		if q.AssigneeID != "" && (t.AssigneeID == nil || *t.AssigneeID != q.AssigneeID) {
			continue
		}
		if !Match(t, q.Filter) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func FilterProjects(projects []model.Project, q model.ProjectQuery) []model.Project {
	out := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if q.OwnerID != "" && p.OwnerID != q.OwnerID {
			continue
		}
		if Match(p, q.Filter) {
			out = append(out, p)
		}
	}
	return out
}

func FilterMilestones(milestones []model.Milestone, q model.MilestoneQuery) []model.Milestone {
	out := make([]model.Milestone, 0, len(milestones))
	for _, m := range milestones {
		if q.ProjectID != "" && m.ProjectID != q.ProjectID {
			continue
		}
		if Match(m, q.Filter) {
			out = append(out, m)
		}
	}
	return out
}

// QueryTasks filters, sorts and truncates in one call.
func QueryTasks(tasks []model.Task, q model.TaskQuery) []model.Task {
	return Limit(Sort(FilterTasks(tasks, q), q.Sort), q.Limit)
}

func QueryProjects(projects []model.Project, q model.ProjectQuery) []model.Project {
	return Limit(Sort(FilterProjects(projects, q), q.Sort), q.Limit)
}

func QueryMilestones(milestones []model.Milestone, q model.MilestoneQuery) []model.Milestone {
	return Sort(FilterMilestones(milestones, q), q.Sort)
}
