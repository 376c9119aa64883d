package notify

import (
	"encoding/json"
	"time"
)

type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

func (s Severity) Valid() bool {
	switch s {
	case Success, Error, Warning, Info:
		return true
	}
	return false
}

// Position is one of the six screen anchors a notification stacks against.
type Position string

const (
	TopRight     Position = "top-right"
	TopLeft      Position = "top-left"
	TopCenter    Position = "top-center"
	BottomRight  Position = "bottom-right"
	BottomLeft   Position = "bottom-left"
	BottomCenter Position = "bottom-center"
)

// Positions lists the anchors in the order Stacks reports them.
var Positions = []Position{TopRight, TopLeft, TopCenter, BottomRight, BottomLeft, BottomCenter}

func (p Position) Valid() bool {
	for _, v := range Positions {
		if p == v {
			return true
		}
	}
	return false
}

const (
	DefaultDuration = 5 * time.Second
	DefaultPosition = TopRight
)

// Notification is a transient outcome message. Duration 0 means sticky.
type Notification struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Severity  Severity      `json:"severity"`
	Position  Position      `json:"position"`
	Duration  time.Duration `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// Sticky reports whether the notification stays until dismissed.
func (n Notification) Sticky() bool { return n.Duration <= 0 }

// MarshalJSON reports the duration in milliseconds.
func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	return json.Marshal(struct {
		alias
		DurationMS int64 `json:"duration"`
	}{alias(n), n.Duration.Milliseconds()})
}

// Snapshot is what subscribers receive after every change. Revision grows
// monotonically so a subscriber can drop snapshots that arrive late.
type Snapshot struct {
	Revision uint64         `json:"revision"`
	Items    []Notification `json:"items"`
}

// Placed is a notification with its slot in a position stack. Index 0 sits
// nearest the anchor and is the oldest entry.
type Placed struct {
	Notification Notification `json:"notification"`
	Index        int          `json:"index"`
}

type Stack struct {
	Position Position `json:"position"`
	Items    []Placed `json:"items"`
}
