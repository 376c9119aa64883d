package model

import "time"

// Activity is one workflow event as recorded by the worker. EventID is the
// de-duplication key.
type Activity struct {
	EventID    string    `json:"event_id"`
	Kind       Kind      `json:"kind"`
	Action     string    `json:"action"`
	EntityID   string    `json:"entity_id"`
	ProjectID  string    `json:"project_id"`
	Status     string    `json:"status,omitempty"`
	Message    string    `json:"message"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
}
