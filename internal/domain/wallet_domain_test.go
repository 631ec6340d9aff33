package domain

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orders-wallet-service/internal/xerrors"
)

func TestWalletDebitRequiresBalance(t *testing.T) {
	wallet := NewWallet(uuid.New())

	if _, err := wallet.Debit(dec("10.00"), nil, "x"); !errors.Is(err, xerrors.ErrInsufficientBalance) {
		t.Errorf("debit empty wallet err = %v, want ErrInsufficientBalance", err)
	}
	if _, err := wallet.Credit(dec("10.00"), nil, "x"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if _, err := wallet.Debit(dec("10.01"), nil, "x"); !errors.Is(err, xerrors.ErrInsufficientBalance) {
		t.Errorf("overdraw err = %v, want ErrInsufficientBalance", err)
	}
	if _, err := wallet.Debit(dec("10.00"), nil, "x"); err != nil {
		t.Errorf("exact debit: %v", err)
	}
	if !wallet.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", wallet.Balance)
	}
}

func TestWalletRejectsNonPositiveAmounts(t *testing.T) {
	wallet := NewWallet(uuid.New())
	wallet.Credit(dec("5.00"), nil, "seed")

	for _, amount := range []string{"0", "-1.00"} {
		if _, err := wallet.Credit(dec(amount), nil, "x"); !errors.Is(err, xerrors.ErrInvalidAmount) {
			t.Errorf("credit %s err = %v, want ErrInvalidAmount", amount, err)
		}
		if _, err := wallet.Debit(dec(amount), nil, "x"); !errors.Is(err, xerrors.ErrInvalidAmount) {
			t.Errorf("debit %s err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestWalletPendingTracksUnsavedEntries(t *testing.T) {
	wallet := NewWallet(uuid.New())
	orderID := uuid.New()

	wallet.Credit(dec("100.00"), nil, "deposit")
	wallet.Debit(dec("30.00"), &orderID, "payment")

	pending := wallet.PendingTransactions()
	if len(pending) != 2 {
		t.Fatalf("pending = %d entries, want 2", len(pending))
	}
	if pending[0].Type != TxCredit || pending[1].Type != TxDebit {
		t.Errorf("pending types = %s, %s", pending[0].Type, pending[1].Type)
	}
	if pending[1].OrderID == nil || *pending[1].OrderID != orderID {
		t.Error("debit entry lost its order reference")
	}

	wallet.ClearPending()
	if len(wallet.PendingTransactions()) != 0 {
		t.Error("ClearPending left entries behind")
	}
	if len(wallet.Transactions) != 2 {
		t.Error("ClearPending must not touch the full history")
	}
}

// Randomized credits and debits: the running balance always equals the replay
// of the ledger and never goes negative.
func TestWalletReplayMatchesBalance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	wallet := NewWallet(uuid.New())

	for i := 0; i < 500; i++ {
		amount := decimal.New(int64(rng.Intn(10000)+1), -2)
		if rng.Intn(2) == 0 {
			wallet.Credit(amount, nil, "credit")
		} else if _, err := wallet.Debit(amount, nil, "debit"); err != nil &&
			!errors.Is(err, xerrors.ErrInsufficientBalance) {
			t.Fatalf("unexpected debit error: %v", err)
		}

		if wallet.Balance.IsNegative() {
			t.Fatalf("balance went negative at step %d: %s", i, wallet.Balance)
		}
		if !wallet.ReplayBalance().Equal(wallet.Balance) {
			t.Fatalf("replay mismatch at step %d: %s vs %s", i, wallet.ReplayBalance(), wallet.Balance)
		}
	}
}
