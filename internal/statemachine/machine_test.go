package statemachine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"projectflow/internal/model"
)

func TestTaskMachine_EveryTransitionSucceeds(t *testing.T) {
	for _, from := range model.TaskStatuses {
		for _, to := range model.TaskStatuses {
			got, err := Task.Transition(from, to)
			if err != nil {
				t.Fatalf("%s -> %s: unexpected error: %v", from, to, err)
			}
			if got != to {
				t.Fatalf("%s -> %s: got %s", from, to, got)
			}
		}
	}
}

func TestMilestoneAndProjectMachines_EveryTransitionSucceeds(t *testing.T) {
	for _, from := range model.MilestoneStatuses {
		for _, to := range model.MilestoneStatuses {
			if _, err := Milestone.Transition(from, to); err != nil {
				t.Fatalf("milestone %s -> %s: %v", from, to, err)
			}
		}
	}
	for _, from := range model.ProjectStatuses {
		for _, to := range model.ProjectStatuses {
			if _, err := Project.Transition(from, to); err != nil {
				t.Fatalf("project %s -> %s: %v", from, to, err)
			}
		}
	}
}

func TestTransition_UnknownTargetIsValidationError(t *testing.T) {
	got, err := Task.Transition(model.TaskTodo, "blocked")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got != model.TaskTodo {
		t.Fatalf("expected state unchanged, got %s", got)
	}
}

func TestTransition_RestrictedTableRejectsEdge(t *testing.T) {
	states := []model.TaskStatus{model.TaskTodo, model.TaskInProgress, model.TaskCompleted}
	m := New(model.KindTask, states, map[model.TaskStatus][]model.TaskStatus{
		model.TaskTodo:       {model.TaskInProgress},
		model.TaskInProgress: {model.TaskCompleted},
	})

	if _, err := m.Transition(model.TaskTodo, model.TaskInProgress); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}
	if _, err := m.Transition(model.TaskTodo, model.TaskCompleted); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected disallowed edge, got %v", err)
	}
	if got := m.Targets(model.TaskTodo); !reflect.DeepEqual(got, []model.TaskStatus{model.TaskInProgress}) {
		t.Fatalf("targets mismatch: %v", got)
	}
}

func TestTransition_LegacyStateCanBeRepaired(t *testing.T) {
	got, err := Milestone.Transition("archived", model.MilestonePending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != model.MilestonePending {
		t.Fatalf("got %s", got)
	}
}

func TestNew_PanicsOnUndeclaredState(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New(model.KindTask, []model.TaskStatus{model.TaskTodo}, map[model.TaskStatus][]model.TaskStatus{
		model.TaskTodo: {model.TaskReview},
	})
}

func TestTargets_DisplayOrder(t *testing.T) {
	got := Task.Targets(model.TaskReview)
	if !reflect.DeepEqual(got, model.TaskStatuses) {
		t.Fatalf("expected all statuses in order, got %v", got)
	}
}

func TestTransitionTask_CompletedAtReflectsCurrentCompletion(t *testing.T) {
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(2 * time.Hour)

	task := &model.Task{Status: model.TaskInProgress}
	if err := TransitionTask(task, model.TaskCompleted, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(first) {
		t.Fatalf("expected completed_at=%v, got %v", first, task.CompletedAt)
	}

	// Re-marking completed keeps the original completion time.
	if err := TransitionTask(task, model.TaskCompleted, later); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !task.CompletedAt.Equal(first) {
		t.Fatalf("expected completed_at kept at %v, got %v", first, task.CompletedAt)
	}

	// Leaving completed clears it.
	if err := TransitionTask(task, model.TaskReview, later); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.CompletedAt != nil {
		t.Fatalf("expected completed_at cleared, got %v", task.CompletedAt)
	}

	// Completing again records the new time.
	if err := TransitionTask(task, model.TaskCompleted, later); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !task.CompletedAt.Equal(later) {
		t.Fatalf("expected completed_at=%v, got %v", later, task.CompletedAt)
	}
}

func TestTransitionTask_InvalidLeavesTaskUntouched(t *testing.T) {
	done := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	task := &model.Task{Status: model.TaskCompleted, CompletedAt: &done}
	if err := TransitionTask(task, "nope", time.Now()); err == nil {
		t.Fatalf("expected error")
	}
	if task.Status != model.TaskCompleted || task.CompletedAt == nil {
		t.Fatalf("task mutated on invalid transition: %+v", task)
	}
}

func TestTransitionMilestoneAndProject(t *testing.T) {
	m := &model.Milestone{Status: model.MilestonePending}
	if err := TransitionMilestone(m, model.MilestoneCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != model.MilestoneCompleted {
		t.Fatalf("got %s", m.Status)
	}

	p := &model.Project{Status: model.ProjectActive}
	if err := TransitionProject(p, model.ProjectOnHold); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := TransitionProject(p, "cancelled"); err == nil {
		t.Fatalf("expected error for unknown project status")
	}
	if p.Status != model.ProjectOnHold {
		t.Fatalf("got %s", p.Status)
	}
}
