package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		customer_id UUID NOT NULL REFERENCES customers(id),
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		product_id UUID NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		id UUID PRIMARY KEY,
		customer_id UUID NOT NULL UNIQUE REFERENCES customers(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		id UUID PRIMARY KEY,
		wallet_id UUID NOT NULL REFERENCES wallets(id),
		tx_type TEXT NOT NULL CHECK (tx_type IN ('DEBIT','CREDIT')),
		amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		order_id UUID,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet
		ON wallet_transactions (wallet_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS event_store (
		id TEXT PRIMARY KEY,
		aggregate_id UUID NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_version TEXT NOT NULL,
		event_data JSONB NOT NULL,
		sequence_number BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (aggregate_id, aggregate_type, sequence_number)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		aggregate_id UUID NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_data JSONB NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		processed_at TIMESTAMPTZ,
		retry_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_unprocessed
		ON outbox_events (processed, created_at)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		key TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		request_hash TEXT NOT NULL,
		response_payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (key, actor_id, operation)
	)`,
	`CREATE TABLE IF NOT EXISTS order_summaries (
		id UUID PRIMARY KEY,
		customer_id UUID NOT NULL,
		customer_name TEXT NOT NULL,
		status TEXT NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		items_count INT NOT NULL DEFAULT 0,
		created_at_read TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_summaries_customer
		ON order_summaries (customer_id, created_at_read DESC)`,
	`CREATE TABLE IF NOT EXISTS wallet_views (
		id UUID PRIMARY KEY,
		customer_id UUID NOT NULL UNIQUE,
		balance NUMERIC(12,2) NOT NULL,
		transactions_count INT NOT NULL DEFAULT 0,
		last_transaction_at TIMESTAMPTZ,
		last_event_id TEXT NOT NULL DEFAULT ''
	)`,
}

// EnsureSchema creates all tables and indexes on startup. Statements are
// idempotent so repeated boots are safe.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
