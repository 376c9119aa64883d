package model

import "time"

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on-hold"
	ProjectCompleted ProjectStatus = "completed"
)

// ProjectStatuses lists every valid project status in display order.
var ProjectStatuses = []ProjectStatus{ProjectActive, ProjectOnHold, ProjectCompleted}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

type Project struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"` // active / on-hold / completed
	Deadline    *time.Time    `json:"deadline,omitempty"`
	Version     int           `json:"version"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (p Project) GetID() string       { return p.ID }
func (p Project) Label() string       { return p.Name }
func (p Project) Created() time.Time  { return p.CreatedAt }
func (p Project) Due() *time.Time     { return p.Deadline }
func (p Project) StatusValue() string { return string(p.Status) }

// ProjectInput carries the editable fields submitted by the project form.
// Version, when non-zero, is the version the caller last read.
type ProjectInput struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	Version     int           `json:"version,omitempty"`
}
