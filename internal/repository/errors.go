package repository

import (
	"errors"

	"projectflow/internal/model"
	"projectflow/pkg/util"

	"github.com/jackc/pgx/v5"
)

// classify turns a driver error into the store taxonomy. A missing row or a
// malformed id is NotFound, anything transient is StoreUnavailable and the
// rest is a plain store failure carrying the driver message.
func classify(kind model.Kind, id string, err error) error {
	if err == nil {
		return nil
	}
	var modelErr *model.Error
	if errors.As(err, &modelErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NotFound(kind, id)
	}
	retryable, errType := util.IsRetryableError(err)
	switch {
	case errType == "invalid_input" && id != "":
		return model.NotFound(kind, id)
	case retryable:
		return model.Unavailable(kind, err)
	}
	return model.StoreFailure(kind, id, err)
}

// isForeignKeyViolation reports a write that referenced a missing parent.
func isForeignKeyViolation(err error) bool {
	_, errType := util.IsRetryableError(err)
	return errType == "foreign_key_violation"
}
