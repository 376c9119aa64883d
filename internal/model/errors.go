package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrStore                  = errors.New("store error")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Error is the failure returned by the workflow and the entity store.
// Kind is one of the sentinels above so callers can use errors.Is.
type Error struct {
	Kind   error
	Entity Kind
	ID     string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	subject := string(e.Entity)
	if subject == "" {
		subject = "record"
	}
	if e.ID != "" {
		subject = fmt.Sprintf("%s %s", subject, e.ID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", subject, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", subject, e.Kind)
}

// Is matches the sentinel kind.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Err }

func Validation(kind Kind, field, msg string) error {
	if field != "" {
		msg = fmt.Sprintf("%s: %s", field, msg)
	}
	return &Error{Kind: ErrValidation, Entity: kind, Msg: msg}
}

func NotFound(kind Kind, id string) error {
	return &Error{Kind: ErrNotFound, Entity: kind, ID: id, Msg: fmt.Sprintf("%s %s not found", kind, id)}
}

func Conflict(kind Kind, id string) error {
	return &Error{
		Kind:   ErrConcurrentModification,
		Entity: kind,
		ID:     id,
		Msg:    fmt.Sprintf("%s %s was modified by someone else", kind, id),
	}
}

func StoreFailure(kind Kind, id string, err error) error {
	return &Error{Kind: ErrStore, Entity: kind, ID: id, Msg: err.Error(), Err: err}
}

func Unavailable(kind Kind, err error) error {
	return &Error{Kind: ErrStoreUnavailable, Entity: kind, Msg: "data store is unavailable", Err: err}
}

// IsValidation reports whether err was raised before any store call.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
