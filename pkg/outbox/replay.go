package outbox

import (
	"context"
	"fmt"
)

// Replay 重放事件：重置为 pending，由 Dispatcher 下一轮发布
func (r *Repository) Replay(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'pending', retry_count = 0, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status <> 'sent'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to replay event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w (or already sent): %d", ErrEventNotFound, id)
	}
	return nil
}

// ReplayFailed 重放最多 limit 个失败的事件，返回重置的数量
func (r *Repository) ReplayFailed(ctx context.Context, limit int) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'pending', retry_count = 0, next_retry_at = NULL, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events WHERE status = 'failed' ORDER BY created_at ASC LIMIT $1
		)
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to replay failed events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
