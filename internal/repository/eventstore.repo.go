package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/utils/id"
)

// EventStoreRepository is the append-only domain event log. Sequence numbers
// are assigned at write time inside the caller's transaction; the log itself
// performs no locking, concurrent appends to one aggregate are serialized by
// the surrounding transaction and wallet lock.
type EventStoreRepository interface {
	Append(ctx context.Context, tx pgx.Tx, event *domain.Event, aggregateType string) error
	ListByAggregate(ctx context.Context, aggregateID uuid.UUID, aggregateType string) ([]domain.StoredEvent, error)
}

type eventStoreRepo struct {
	db *pgxpool.Pool
}

func NewEventStoreRepo(db *pgxpool.Pool) EventStoreRepository {
	return &eventStoreRepo{db: db}
}

func (r *eventStoreRepo) Append(ctx context.Context, tx pgx.Tx, event *domain.Event, aggregateType string) error {
	// seq = max + 1 computed in the same transaction keeps the per-aggregate
	// sequence gapless.
	var last int64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0)
		FROM event_store WHERE aggregate_id = $1 AND aggregate_type = $2
	`, event.AggregateID, aggregateType).Scan(&last)
	if err != nil {
		return fmt.Errorf("failed to read last sequence number: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO event_store (id, aggregate_id, aggregate_type, event_type, event_version, event_data, sequence_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id.NewULID(), event.AggregateID, aggregateType, event.EventType,
		event.Version, event.Payload, last+1, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *eventStoreRepo) ListByAggregate(ctx context.Context, aggregateID uuid.UUID, aggregateType string) ([]domain.StoredEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, event_version, event_data, sequence_number, created_at
		FROM event_store
		WHERE aggregate_id = $1 AND aggregate_type = $2
		ORDER BY sequence_number ASC
	`, aggregateID, aggregateType)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []domain.StoredEvent
	for rows.Next() {
		var ev domain.StoredEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.AggregateType, &ev.EventType,
			&ev.Version, &ev.Payload, &ev.SequenceNumber, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
