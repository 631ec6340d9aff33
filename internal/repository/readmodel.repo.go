package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/xerrors"
)

// ReadModelRepository maintains the denormalized projections. Every write is
// an upsert or an absolute update so the projector can re-apply an event
// without changing the outcome.
type ReadModelRepository interface {
	UpsertOrderSummary(ctx context.Context, summary *domain.OrderSummary) error
	SetOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error
	GetOrderSummary(ctx context.Context, orderID uuid.UUID) (*domain.OrderSummary, error)
	ListOrderSummariesByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.OrderSummary, error)

	UpsertWalletView(ctx context.Context, view *domain.WalletView) error
	// ApplyWalletMovement sets the wallet view to the absolute balance carried
	// by a WalletDebited/WalletCredited event. eventID is the outbox row id of
	// the movement; redelivered events are deduplicated by it.
	ApplyWalletMovement(ctx context.Context, walletID uuid.UUID, eventID string, balance decimal.Decimal, at time.Time) error
	GetWalletView(ctx context.Context, customerID uuid.UUID) (*domain.WalletView, error)
}

type readModelRepo struct {
	db *pgxpool.Pool
}

func NewReadModelRepo(db *pgxpool.Pool) ReadModelRepository {
	return &readModelRepo{db: db}
}

func (r *readModelRepo) UpsertOrderSummary(ctx context.Context, s *domain.OrderSummary) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO order_summaries (id, customer_id, customer_name, status, total_amount, items_count, created_at_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			customer_name = EXCLUDED.customer_name,
			status = EXCLUDED.status,
			total_amount = EXCLUDED.total_amount,
			items_count = EXCLUDED.items_count
	`, s.ID, s.CustomerID, s.CustomerName, s.Status, s.TotalAmount, s.ItemsCount, s.CreatedAtRead)
	if err != nil {
		return fmt.Errorf("failed to upsert order summary: %w", err)
	}
	return nil
}

func (r *readModelRepo) SetOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE order_summaries SET status = $1 WHERE id = $2
	`, status, orderID)
	if err != nil {
		return fmt.Errorf("failed to set order summary status: %w", err)
	}
	return nil
}

func (r *readModelRepo) GetOrderSummary(ctx context.Context, orderID uuid.UUID) (*domain.OrderSummary, error) {
	var s domain.OrderSummary
	err := r.db.QueryRow(ctx, `
		SELECT id, customer_id, customer_name, status, total_amount, items_count, created_at_read
		FROM order_summaries WHERE id = $1
	`, orderID).Scan(&s.ID, &s.CustomerID, &s.CustomerName, &s.Status,
		&s.TotalAmount, &s.ItemsCount, &s.CreatedAtRead)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order summary: %w", err)
	}
	return &s, nil
}

func (r *readModelRepo) ListOrderSummariesByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.OrderSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, customer_id, customer_name, status, total_amount, items_count, created_at_read
		FROM order_summaries
		WHERE customer_id = $1
		ORDER BY created_at_read DESC
		LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list order summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.OrderSummary
	for rows.Next() {
		var s domain.OrderSummary
		if err := rows.Scan(&s.ID, &s.CustomerID, &s.CustomerName, &s.Status,
			&s.TotalAmount, &s.ItemsCount, &s.CreatedAtRead); err != nil {
			return nil, fmt.Errorf("failed to scan order summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *readModelRepo) UpsertWalletView(ctx context.Context, v *domain.WalletView) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO wallet_views (id, customer_id, balance, transactions_count, last_transaction_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, v.ID, v.CustomerID, v.Balance, v.TransactionsCount, v.LastTransactionAt)
	if err != nil {
		return fmt.Errorf("failed to upsert wallet view: %w", err)
	}
	return nil
}

func (r *readModelRepo) ApplyWalletMovement(ctx context.Context, walletID uuid.UUID, eventID string, balance decimal.Decimal, at time.Time) error {
	var lastEventID string
	err := r.db.QueryRow(ctx, `SELECT last_event_id FROM wallet_views WHERE id = $1`, walletID).Scan(&lastEventID)
	if err == nil {
		// Outbox ids are ULIDs, so string order is creation order. A
		// redelivered event carries an id at or below the watermark and must
		// leave the view untouched.
		if eventID <= lastEventID {
			return nil
		}
		_, err = r.db.Exec(ctx, `
			UPDATE wallet_views
			SET balance = $1, transactions_count = transactions_count + 1,
				last_transaction_at = $2, last_event_id = $3
			WHERE id = $4
		`, balance, at, eventID, walletID)
		if err != nil {
			return fmt.Errorf("failed to apply wallet movement: %w", err)
		}
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to read wallet view: %w", err)
	}

	// The WalletCreated projection may lag or be replayed out of order; fall
	// back to the write model for the owning customer.
	var customerID uuid.UUID
	err = r.db.QueryRow(ctx, `SELECT customer_id FROM wallets WHERE id = $1`, walletID).Scan(&customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrWalletNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to resolve wallet owner: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO wallet_views (id, customer_id, balance, transactions_count, last_transaction_at, last_event_id)
		VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			balance = EXCLUDED.balance,
			transactions_count = wallet_views.transactions_count + 1,
			last_transaction_at = EXCLUDED.last_transaction_at,
			last_event_id = EXCLUDED.last_event_id
		WHERE wallet_views.last_event_id < EXCLUDED.last_event_id
	`, walletID, customerID, balance, at, eventID)
	if err != nil {
		return fmt.Errorf("failed to create wallet view: %w", err)
	}
	return nil
}

func (r *readModelRepo) GetWalletView(ctx context.Context, customerID uuid.UUID) (*domain.WalletView, error) {
	var v domain.WalletView
	err := r.db.QueryRow(ctx, `
		SELECT id, customer_id, balance, transactions_count, last_transaction_at, last_event_id
		FROM wallet_views WHERE customer_id = $1
	`, customerID).Scan(&v.ID, &v.CustomerID, &v.Balance, &v.TransactionsCount, &v.LastTransactionAt, &v.LastEventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet view: %w", err)
	}
	return &v, nil
}
