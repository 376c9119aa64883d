// Package outbox spools workflow events whose direct publish failed and
// re-publishes them in the background until the broker takes them.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// ErrEventNotFound is returned by Get and Replay for an unknown id.
var ErrEventNotFound = errors.New("outbox event not found")

// Event 表示一个待发布的事件
type Event struct {
	ID          int64           `json:"id"`
	EventID     string          `json:"event_id"`
	RoutingKey  string          `json:"routing_key"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	RetryCount  int             `json:"retry_count"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Store is the persistence the Spool and Dispatcher need.
type Store interface {
	Insert(ctx context.Context, e *Event) error
	Pending(ctx context.Context, limit int) ([]*Event, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, maxRetries int, cause string) error
}

// RetryDelay is the back-off after the n-th failed attempt: 5s, 10s, 15s...
func RetryDelay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(n) * 5 * time.Second
}

// Repository 提供 Outbox 操作（PostgreSQL）
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const eventColumns = `id, event_id, routing_key, payload, status, retry_count, next_retry_at, last_error, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID,
		&e.EventID,
		&e.RoutingKey,
		&e.Payload,
		&e.Status,
		&e.RetryCount,
		&e.NextRetryAt,
		&e.LastError,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collect(rows pgx.Rows) ([]*Event, error) {
	defer rows.Close()
	events := []*Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Insert stores e as pending. ID and timestamps are filled in.
func (r *Repository) Insert(ctx context.Context, e *Event) error {
	if e.Status == "" {
		e.Status = StatusPending
	}
	query := `
		INSERT INTO outbox_events (event_id, routing_key, payload, status, last_error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, e.EventID, e.RoutingKey, e.Payload, e.Status, e.LastError).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// Pending 获取到期待发送的事件（用于 Dispatcher），最早的在前
func (r *Repository) Pending(ctx context.Context, limit int) ([]*Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM outbox_events
		WHERE status = 'pending'
		AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	return collect(rows)
}

// MarkSent 标记事件为已发送
func (r *Repository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'sent', next_retry_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event as sent: %w", err)
	}
	return nil
}

// MarkFailed counts a failed attempt. Below maxRetries the event is
// rescheduled after RetryDelay; at maxRetries it is parked as failed until
// replayed.
func (r *Repository) MarkFailed(ctx context.Context, id int64, maxRetries int, cause string) error {
	var retryCount int
	if err := r.db.QueryRow(ctx, `SELECT retry_count FROM outbox_events WHERE id = $1`, id).Scan(&retryCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to get retry count: %w", err)
	}
	retryCount++

	status := StatusPending
	var nextRetryAt *time.Time
	if retryCount >= maxRetries {
		status = StatusFailed
	} else {
		next := time.Now().Add(RetryDelay(retryCount))
		nextRetryAt = &next
	}

	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, retry_count = $2, next_retry_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $5
	`, status, retryCount, nextRetryAt, cause, id)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	return nil
}

// Get 根据 ID 获取事件
func (r *Repository) Get(ctx context.Context, id int64) (*Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM outbox_events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// Failed 获取失败的事件（用于运维排查），最新的在前
func (r *Repository) Failed(ctx context.Context, limit int) ([]*Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM outbox_events
		WHERE status = 'failed'
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed events: %w", err)
	}
	return collect(rows)
}
