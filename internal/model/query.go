package model

// SortKey selects exactly one ordering for a list.
type SortKey string

const (
	SortNewest   SortKey = "newest"
	SortOldest   SortKey = "oldest"
	SortDeadline SortKey = "deadline"
	SortName     SortKey = "name"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortNewest, SortOldest, SortDeadline, SortName:
		return true
	}
	return false
}

// OrDefault maps an empty or unknown key to newest, the list default.
func (k SortKey) OrDefault() SortKey {
	if k.Valid() {
		return k
	}
	return SortNewest
}

// Filter is the conjunctive predicate shared by every list. Empty fields
// are no-ops. Priority only applies to tasks.
type Filter struct {
	Status   string `form:"status" json:"status,omitempty"`
	Priority string `form:"priority" json:"priority,omitempty"`
	Search   string `form:"search" json:"search,omitempty"`
}

func (f Filter) Empty() bool {
	return f.Status == "" && f.Priority == "" && f.Search == ""
}

type ProjectQuery struct {
	OwnerID string
	Filter
	Sort  SortKey
	Limit int
}

type MilestoneQuery struct {
	ProjectID string
	Filter
	Sort SortKey
}

type TaskQuery struct {
	// OwnerID limits the result to tasks of projects owned by that user.
	OwnerID     string
	ProjectID   string
	MilestoneID string
	AssigneeID  string
	Filter
	Sort  SortKey
	Limit int
}
