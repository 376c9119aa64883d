package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind names one of the three entity tables.
type Kind string

const (
	KindProject   Kind = "project"
	KindMilestone Kind = "milestone"
	KindTask      Kind = "task"
)

func (k Kind) Valid() bool {
	switch k {
	case KindProject, KindMilestone, KindTask:
		return true
	}
	return false
}

// Title returns the capitalised kind used in user-facing messages.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", Validation(k, "", fmt.Sprintf("unknown kind %q", s))
	}
	return k, nil
}

// Record is implemented by every entity so the derivation engine can sort
// and search projects, milestones and tasks with one code path.
type Record interface {
	GetID() string
	Label() string
	Created() time.Time
	Due() *time.Time
	StatusValue() string
}

// HumanStatus turns a status value into its display form, e.g.
// "in-progress" -> "in progress".
func HumanStatus(status string) string {
	return strings.ReplaceAll(status, "-", " ")
}
