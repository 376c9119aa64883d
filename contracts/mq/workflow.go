package mq

import (
	"fmt"
	"time"
)

// Workflow event actions. The routing key is "<kind>.<action>".
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionDeleted       = "deleted"
	ActionStatusChanged = "status_changed"
)

// Actions lists every action a workflow event can carry.
var Actions = []string{ActionCreated, ActionUpdated, ActionDeleted, ActionStatusChanged}

// WorkflowBinding matches every workflow event on the topic exchange.
const WorkflowBinding = "*.*"

// RoutingKey returns e.g. "task.status_changed".
func RoutingKey(kind, action string) string {
	return fmt.Sprintf("%s.%s", kind, action)
}

// WorkflowEventPayload is published after every successful mutation.
type WorkflowEventPayload struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`   // project / milestone / task
	Action     string    `json:"action"` // created / updated / deleted / status_changed
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Status     string    `json:"status,omitempty"`
	PrevStatus string    `json:"prev_status,omitempty"`
	Name       string    `json:"name,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (p WorkflowEventPayload) RoutingKey() string {
	return RoutingKey(p.Kind, p.Action)
}
