package statemachine

import (
	"time"

	"projectflow/internal/model"
)

// Every table currently permits every edge. To forbid one, drop it from the
// corresponding row here.
var (
	Task      = New(model.KindTask, model.TaskStatuses, EveryEdge(model.TaskStatuses))
	Milestone = New(model.KindMilestone, model.MilestoneStatuses, EveryEdge(model.MilestoneStatuses))
	Project   = New(model.KindProject, model.ProjectStatuses, EveryEdge(model.ProjectStatuses))
)

// TransitionTask moves t to the target status and keeps completed_at in
// line with it. t is only modified when the transition is valid.
func TransitionTask(t *model.Task, to model.TaskStatus, now time.Time) error {
	prev := t.Status
	next, err := Task.Transition(prev, to)
	if err != nil {
		return err
	}
	t.Status = next
	SyncCompletion(prev, t, now)
	return nil
}

// SyncCompletion applies the completed_at policy: the timestamp always
// reflects the current completion. It is set on entering completed, kept
// while the task stays completed, and cleared on leaving.
func SyncCompletion(prev model.TaskStatus, t *model.Task, now time.Time) {
	if t.Status != model.TaskCompleted {
		t.CompletedAt = nil
		return
	}
	if prev != model.TaskCompleted || t.CompletedAt == nil {
		ts := now
		t.CompletedAt = &ts
	}
}

func TransitionMilestone(m *model.Milestone, to model.MilestoneStatus) error {
	next, err := Milestone.Transition(m.Status, to)
	if err != nil {
		return err
	}
	m.Status = next
	return nil
}

func TransitionProject(p *model.Project, to model.ProjectStatus) error {
	next, err := Project.Transition(p.Status, to)
	if err != nil {
		return err
	}
	p.Status = next
	return nil
}
