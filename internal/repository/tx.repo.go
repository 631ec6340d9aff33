package repository

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxManager is the unit-of-work boundary: every command executes aggregate
// mutation, event append and outbox enqueue inside exactly one transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

type pgxTxManager struct {
	db *pgxpool.Pool
}

func NewTxManager(db *pgxpool.Pool) TxManager {
	return &pgxTxManager{db: db}
}

func (m *pgxTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once committed.
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockManager serializes wallet read-then-write sections. The lock is
// transaction scoped: Postgres releases it on commit or rollback, so it can
// never be left held.
type LockManager interface {
	AcquireWalletLock(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) error
}

type advisoryLockManager struct{}

func NewLockManager() LockManager {
	return advisoryLockManager{}
}

func (advisoryLockManager) AcquireWalletLock(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, walletLockKey(walletID)); err != nil {
		return fmt.Errorf("failed to acquire wallet lock: %w", err)
	}
	return nil
}

// walletLockKey maps a wallet id deterministically into the 64-bit advisory
// lock space.
func walletLockKey(walletID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(walletID.String()))
	return int64(h.Sum64())
}
