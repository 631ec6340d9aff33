package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/xerrors"
)

type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	GetByCustomerID(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error)
	// SaveTransactions persists the wallet's pending ledger entries. The save
	// is rejected when the declared balance drifts from the replayed balance
	// by more than domain.BalanceTolerance.
	SaveTransactions(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

type walletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepo(db *pgxpool.Pool) WalletRepository {
	return &walletRepo{db: db}
}

func (r *walletRepo) q(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *walletRepo) Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (id, customer_id) VALUES ($1, $2)
	`, wallet.ID, wallet.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to insert wallet: %w", err)
	}
	return nil
}

func (r *walletRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.load(ctx, tx, `SELECT id, customer_id FROM wallets WHERE id = $1`, id)
}

func (r *walletRepo) GetByCustomerID(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error) {
	return r.load(ctx, tx, `SELECT id, customer_id FROM wallets WHERE customer_id = $1`, customerID)
}

func (r *walletRepo) load(ctx context.Context, tx pgx.Tx, query string, arg any) (*domain.Wallet, error) {
	q := r.q(tx)

	var w domain.Wallet
	err := q.QueryRow(ctx, query, arg).Scan(&w.ID, &w.CustomerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, wallet_id, tx_type, amount, order_id, description, created_at
		FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at ASC, id ASC
	`, w.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txn domain.WalletTransaction
		if err := rows.Scan(&txn.ID, &txn.WalletID, &txn.Type, &txn.Amount,
			&txn.OrderID, &txn.Description, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		w.Transactions = append(w.Transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Balance is never stored; the replayed ledger is authoritative.
	w.Balance = w.ReplayBalance()
	return &w, nil
}

func (r *walletRepo) SaveTransactions(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	if wallet.Balance.Sub(wallet.ReplayBalance()).Abs().GreaterThan(domain.BalanceTolerance) {
		return xerrors.ErrBalanceMismatch
	}

	for _, txn := range wallet.PendingTransactions() {
		_, err := tx.Exec(ctx, `
			INSERT INTO wallet_transactions (id, wallet_id, tx_type, amount, order_id, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, txn.ID, txn.WalletID, txn.Type, txn.Amount, txn.OrderID, txn.Description, txn.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert wallet transaction: %w", err)
		}
	}
	wallet.ClearPending()
	return nil
}
