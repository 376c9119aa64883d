package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"projectflow/internal/derive"
	"projectflow/internal/model"
	"projectflow/internal/notify"
	"projectflow/internal/repository"
	"projectflow/pkg/outbox"

	"github.com/spf13/cobra"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func strptr(s string) *string { return &s }

func TestRenderView(t *testing.T) {
	today := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	p := model.Project{ID: "p1", Name: "Apollo", Status: model.ProjectActive, Deadline: day("2024-06-01")}
	milestones := []model.Milestone{
		{ID: "m1", ProjectID: "p1", Name: "Design", Status: model.MilestoneInProgress, Deadline: day("2024-04-01")},
	}
	tasks := []model.Task{
		{ID: "t1", ProjectID: "p1", MilestoneID: strptr("m1"), Title: "Wireframes", Status: model.TaskTodo, Priority: model.PriorityHigh, Deadline: day("2024-03-01")},
		{ID: "t2", ProjectID: "p1", Title: "Kickoff", Status: model.TaskInProgress, Priority: model.PriorityLow, Deadline: day("2024-03-12")},
		{ID: "t3", ProjectID: "p1", Title: "Charter", Status: model.TaskCompleted, Priority: model.PriorityMedium},
	}
	view := derive.BuildProjectView(p, milestones, tasks, model.TaskQuery{ProjectID: "p1"}, today, 7)

	var buf bytes.Buffer
	renderView(&buf, view, true)
	out := buf.String()

	for _, want := range []string{
		"Apollo [active]  deadline 2024-06-01",
		"Milestones (1 total, 0 completed, 1 in progress, 0 pending)",
		"Design",
		"50%",
		"1 tasks",
		"Board (3 tasks)",
		"To Do (1)",
		"- Wireframes [high]",
		"In Progress (1)",
		"Review (0)",
		"Completed (1)",
		"Overdue:",
		"Upcoming:",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	overdue := out[strings.Index(out, "Overdue:"):strings.Index(out, "Upcoming:")]
	if !strings.Contains(overdue, "Wireframes") || strings.Contains(overdue, "Kickoff") {
		t.Fatalf("unexpected overdue section:\n%s", overdue)
	}

	buf.Reset()
	renderView(&buf, view, false)
	if strings.Contains(buf.String(), "Overdue:") {
		t.Fatalf("deadlines printed although disabled:\n%s", buf.String())
	}
}

func TestRenderActivity(t *testing.T) {
	var buf bytes.Buffer
	renderActivity(&buf, nil)
	if strings.TrimSpace(buf.String()) != "No activity recorded" {
		t.Fatalf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	renderActivity(&buf, []model.Activity{{
		Kind:       model.KindTask,
		Action:     "status_changed",
		Message:    "Task marked as completed",
		OccurredAt: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
	}})
	out := buf.String()
	for _, want := range []string{"WHEN", "2024-03-10 09:30:00", "status_changed", "Task marked as completed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrintNotifications(t *testing.T) {
	q := notify.NewQueue(notify.WithScheduler(notify.NewManualScheduler()))
	q.Success("Task created successfully")
	q.Error("Failed to update task status")

	var buf bytes.Buffer
	printNotifications(&buf, q)
	want := "success: Task created successfully\nerror: Failed to update task status\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestRenderOutbox(t *testing.T) {
	var buf bytes.Buffer
	renderOutbox(&buf, nil)
	if strings.TrimSpace(buf.String()) != "No failed events" {
		t.Fatalf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	renderOutbox(&buf, []*outbox.Event{{
		ID:         42,
		RoutingKey: "task.created",
		RetryCount: 5,
		LastError:  "channel closed",
		CreatedAt:  time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
	}})
	for _, want := range []string{"ROUTING KEY", "42", "task.created", "channel closed"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, buf.String())
		}
	}
}

func TestOutboxReplayNeedsTarget(t *testing.T) {
	outboxReplayAll = false
	if err := runOutboxReplay(&cobra.Command{}, nil); err == nil {
		t.Fatalf("expected error without id or --all")
	}
}

func TestMigrateDryRun(t *testing.T) {
	migrateDryRun = true
	t.Cleanup(func() { migrateDryRun = false })

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	if err := runMigrate(cmd, nil); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(buf.String(), "Dry run - no changes made") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if repository.SchemaVersion() < 1 {
		t.Fatalf("expected at least one migration")
	}
}
