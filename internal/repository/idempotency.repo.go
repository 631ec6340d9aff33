package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/xerrors"
)

// IdempotencyRepository stores cached command responses keyed by
// (key, actor, operation). The primary key enforces race safety: a concurrent
// duplicate insert surfaces as a unique violation.
type IdempotencyRepository interface {
	// Get returns (nil, nil) when no record exists.
	Get(ctx context.Context, key, actorID, operation string) (*domain.IdempotencyRecord, error)
	Insert(ctx context.Context, record *domain.IdempotencyRecord) error
}

type idempotencyRepo struct {
	db *pgxpool.Pool
}

func NewIdempotencyRepo(db *pgxpool.Pool) IdempotencyRepository {
	return &idempotencyRepo{db: db}
}

func (r *idempotencyRepo) Get(ctx context.Context, key, actorID, operation string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := r.db.QueryRow(ctx, `
		SELECT key, actor_id, operation, request_hash, response_payload, created_at
		FROM idempotency_keys
		WHERE key = $1 AND actor_id = $2 AND operation = $3
	`, key, actorID, operation).Scan(&rec.Key, &rec.ActorID, &rec.Operation,
		&rec.RequestHash, &rec.ResponsePayload, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return &rec, nil
}

func (r *idempotencyRepo) Insert(ctx context.Context, record *domain.IdempotencyRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO idempotency_keys (key, actor_id, operation, request_hash, response_payload)
		VALUES ($1, $2, $3, $4, $5)
	`, record.Key, record.ActorID, record.Operation, record.RequestHash, record.ResponsePayload)
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == xerrors.PGUniqueViolation {
			return xerrors.ErrDuplicateRequest
		}
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	return nil
}
