package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/utils/id"
)

// OutboxRepository implements the transactional outbox: Add runs in the same
// transaction as the event-store append, so no event is logged without being
// queued for delivery, and vice versa.
type OutboxRepository interface {
	Add(ctx context.Context, tx pgx.Tx, event *domain.Event, aggregateType string) (string, error)
	FetchUnprocessed(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
	IncrementRetry(ctx context.Context, id string) error
}

type outboxRepo struct {
	db *pgxpool.Pool
}

func NewOutboxRepo(db *pgxpool.Pool) OutboxRepository {
	return &outboxRepo{db: db}
}

func (r *outboxRepo) Add(ctx context.Context, tx pgx.Tx, event *domain.Event, aggregateType string) (string, error) {
	outboxID := id.NewULID()
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (id, aggregate_id, aggregate_type, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, outboxID, event.AggregateID, aggregateType, event.EventType, event.Payload, event.OccurredAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return outboxID, nil
}

func (r *outboxRepo) FetchUnprocessed(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, processed, processed_at, retry_count, created_at
		FROM outbox_events
		WHERE processed = FALSE
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.AggregateType, &ev.EventType,
			&ev.Payload, &ev.Processed, &ev.ProcessedAt, &ev.RetryCount, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events SET processed = TRUE, processed_at = $1 WHERE id = $2
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return nil
}

func (r *outboxRepo) IncrementRetry(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events SET retry_count = retry_count + 1 WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to increment outbox retry count: %w", err)
	}
	return nil
}
