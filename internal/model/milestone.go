package model

import "time"

type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "in-progress"
	MilestoneCompleted  MilestoneStatus = "completed"
)

var MilestoneStatuses = []MilestoneStatus{MilestonePending, MilestoneInProgress, MilestoneCompleted}

func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestonePending, MilestoneInProgress, MilestoneCompleted:
		return true
	}
	return false
}

type Milestone struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	Status      MilestoneStatus `json:"status"` // pending / in-progress / completed
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (m Milestone) GetID() string       { return m.ID }
func (m Milestone) Label() string       { return m.Name }
func (m Milestone) Created() time.Time  { return m.CreatedAt }
func (m Milestone) Due() *time.Time     { return m.Deadline }
func (m Milestone) StatusValue() string { return string(m.Status) }

type MilestoneInput struct {
	ProjectID   string          `json:"project_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	Status      MilestoneStatus `json:"status"`
	Version     int             `json:"version,omitempty"`
}
