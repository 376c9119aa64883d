package model

import "time"

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
)

// TaskStatuses is also the kanban column order.
var TaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskReview, TaskCompleted}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskReview, TaskCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	MilestoneID *string    `json:"milestone_id,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t Task) GetID() string         { return t.ID }
func (t Task) Label() string         { return t.Title }
func (t Task) Created() time.Time    { return t.CreatedAt }
func (t Task) Due() *time.Time       { return t.Deadline }
func (t Task) StatusValue() string   { return string(t.Status) }
func (t Task) PriorityValue() string { return string(t.Priority) }

// InMilestone reports whether the task references milestoneID.
func (t Task) InMilestone(milestoneID string) bool {
	return t.MilestoneID != nil && *t.MilestoneID == milestoneID
}

type TaskInput struct {
	ProjectID   string     `json:"project_id"`
	MilestoneID *string    `json:"milestone_id,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Version     int        `json:"version,omitempty"`
}
