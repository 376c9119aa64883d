package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryableError(t *testing.T) {
	var syntax *json.SyntaxError
	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})
	if !errors.As(jsonErr, &syntax) {
		t.Fatalf("fixture is not a syntax error: %v", jsonErr)
	}

	cases := []struct {
		name      string
		err       error
		retryable bool
		kind      string
	}{
		{"nil", nil, false, ""},
		{"json", jsonErr, false, "json_decode_error"},
		{"no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), false, "not_found"},
		{"duplicate", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"bad uuid", &pgconn.PgError{Code: "22P02"}, false, "invalid_input"},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true, "db_connection_error"},
		{"serialization", &pgconn.PgError{Code: "40001"}, true, "serialization_failure"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"refused", errors.New("dial tcp: connection refused"), true, "connection_error"},
		{"unknown", errors.New("boom"), false, "unknown_error"},
	}
	for _, tc := range cases {
		retryable, kind := IsRetryableError(tc.err)
		if retryable != tc.retryable || kind != tc.kind {
			t.Fatalf("%s: expected (%v, %s), got (%v, %s)", tc.name, tc.retryable, tc.kind, retryable, kind)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(1, 3, false) {
		t.Fatalf("non-retryable errors never retry")
	}
	if !ShouldRetry(3, 3, true) {
		t.Fatalf("expected retry at the limit")
	}
	if ShouldRetry(4, 3, true) {
		t.Fatalf("expected no retry past the limit")
	}
}
