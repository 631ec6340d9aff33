package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/xerrors"
)

func TestDepositCreatesWalletOnFirstUse(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	customer := env.addCustomer("Alice", "alice@example.com")

	result, err := env.walletUC.Deposit(ctx, customer.ID, mustDecimal("100.00"), "Top up")
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !result.Balance.Equal(mustDecimal("100.00")) {
		t.Errorf("balance = %s, want 100.00", result.Balance)
	}

	events, _ := env.eventStore.ListByAggregate(ctx, result.WalletID, domain.AggregateWallet)
	if len(events) != 2 || events[0].EventType != domain.EventWalletCreated || events[1].EventType != domain.EventWalletCredited {
		t.Errorf("events = %v, want [WalletCreated WalletCredited]", events)
	}

	// Second deposit reuses the wallet.
	result, err = env.walletUC.Deposit(ctx, customer.ID, mustDecimal("50.00"), "")
	if err != nil {
		t.Fatalf("second Deposit: %v", err)
	}
	if !result.Balance.Equal(mustDecimal("150.00")) {
		t.Errorf("balance = %s, want 150.00", result.Balance)
	}
	events, _ = env.eventStore.ListByAggregate(ctx, result.WalletID, domain.AggregateWallet)
	if len(events) != 3 {
		t.Errorf("event count = %d, want 3 (no second WalletCreated)", len(events))
	}
}

func TestDepositValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	customer := env.addCustomer("Bob", "bob@example.com")

	if _, err := env.walletUC.Deposit(ctx, customer.ID, mustDecimal("0"), ""); !errors.Is(err, xerrors.ErrInvalidAmount) {
		t.Errorf("zero amount err = %v, want ErrInvalidAmount", err)
	}
	if _, err := env.walletUC.Deposit(ctx, customer.ID, mustDecimal("-5.00"), ""); !errors.Is(err, xerrors.ErrInvalidAmount) {
		t.Errorf("negative amount err = %v, want ErrInvalidAmount", err)
	}
	if _, err := env.walletUC.Deposit(ctx, uuid.New(), mustDecimal("5.00"), ""); !errors.Is(err, xerrors.ErrCustomerNotFound) {
		t.Errorf("unknown customer err = %v, want ErrCustomerNotFound", err)
	}
}

func TestGetBalanceZeroWithoutWallet(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	customer := env.addCustomer("Carol", "carol@example.com")

	result, err := env.walletUC.GetBalance(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !result.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", result.Balance)
	}
	if _, err := env.walletUC.GetBalance(ctx, uuid.New()); !errors.Is(err, xerrors.ErrCustomerNotFound) {
		t.Errorf("unknown customer err = %v, want ErrCustomerNotFound", err)
	}
}

func TestGetBalanceCachesAndInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	env := newTestEnv()
	env.walletUC = NewWalletUsecase(env.walletRepo, env.customerRepo, env.eventStore,
		env.outboxRepo, fakeTxManager{}, env.locks, client, nil, zap.NewNop())

	ctx := context.Background()
	customer := env.addCustomer("Dave", "dave@example.com")
	if _, err := env.walletUC.Deposit(ctx, customer.ID, mustDecimal("100.00"), ""); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	first, err := env.walletUC.GetBalance(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !first.Balance.Equal(mustDecimal("100.00")) {
		t.Fatalf("balance = %s, want 100.00", first.Balance)
	}

	// Move money behind the cache's back; the stale read proves the cache hit.
	wallet, _ := env.walletRepo.GetByCustomerID(ctx, nil, customer.ID)
	if _, err := wallet.Credit(mustDecimal("900.00"), nil, "out-of-band"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := env.walletRepo.SaveTransactions(ctx, nil, wallet); err != nil {
		t.Fatalf("SaveTransactions: %v", err)
	}

	cached, err := env.walletUC.GetBalance(ctx, customer.ID)
	if err != nil {
		t.Fatalf("cached GetBalance: %v", err)
	}
	if !cached.Balance.Equal(mustDecimal("100.00")) {
		t.Errorf("cached balance = %s, want stale 100.00", cached.Balance)
	}

	env.walletUC.AfterWalletChange(ctx, customer.ID, wallet.Balance)

	fresh, err := env.walletUC.GetBalance(ctx, customer.ID)
	if err != nil {
		t.Fatalf("fresh GetBalance: %v", err)
	}
	if !fresh.Balance.Equal(mustDecimal("1000.00")) {
		t.Errorf("fresh balance = %s, want 1000.00", fresh.Balance)
	}
}
