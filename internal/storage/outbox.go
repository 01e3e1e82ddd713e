package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/linemk/jersey-shop/internal/domain/models"
)

// OutboxStorage - таблица исходящих событий
type OutboxStorage interface {
	Insert(ctx context.Context, msg *models.OutboxMessage) error
	// ClaimPendingMessages забирает до limit готовых к отправке сообщений и сдвигает их next_retry_at на lease.
	// Строки, занятые другим экземпляром, пропускаются.
	ClaimPendingMessages(ctx context.Context, limit int, lease time.Duration) ([]*models.OutboxMessage, error)
	Delete(ctx context.Context, id int64) error
	UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error
}

type outboxRepository struct {
	db DBTX
}

func NewOutboxRepository(db DBTX) OutboxStorage {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Insert(ctx context.Context, msg *models.OutboxMessage) error {
	query, args, err := psql().Insert("outbox").
		Columns("event_id", "exchange_name", "routing_key", "payload", "content_type", "max_retries").
		Values(msg.EventID, msg.ExchangeName, msg.RoutingKey, msg.Payload, msg.ContentType, msg.MaxRetries).
		Suffix("RETURNING id, created_at, next_retry_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&msg.ID, &msg.CreatedAt, &msg.NextRetryAt); err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", mapError(err))
	}
	return nil
}

const claimOutboxQuery = `UPDATE outbox
		SET next_retry_at = NOW() + $1 * INTERVAL '1 millisecond', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox
			WHERE next_retry_at <= NOW() AND retry_count < max_retries
			ORDER BY next_retry_at ASC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_id, exchange_name, routing_key, payload, content_type,
			retry_count, max_retries, last_error, created_at, next_retry_at`

// ClaimPendingMessages - выборка и захват одним запросом. Если воркер упадёт до Delete/UpdateRetry,
// сообщение снова станет доступно по истечении lease.
func (r *outboxRepository) ClaimPendingMessages(ctx context.Context, limit int, lease time.Duration) ([]*models.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx, claimOutboxQuery, lease.Milliseconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox messages: %w", mapError(err))
	}
	defer rows.Close()

	var messages []*models.OutboxMessage
	for rows.Next() {
		msg := &models.OutboxMessage{}
		if err := rows.Scan(
			&msg.ID, &msg.EventID, &msg.ExchangeName, &msg.RoutingKey, &msg.Payload, &msg.ContentType,
			&msg.RetryCount, &msg.MaxRetries, &msg.LastError, &msg.CreatedAt, &msg.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}
	return messages, nil
}

func (r *outboxRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := psql().Delete("outbox").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete outbox message: %w", err)
	}
	return nil
}

func (r *outboxRepository) UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	query, args, err := psql().Update("outbox").
		Set("retry_count", retryCount).
		Set("last_error", lastError).
		Set("next_retry_at", nextRetryAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox message: %w", err)
	}
	return nil
}
