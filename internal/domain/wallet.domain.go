package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orders-wallet-service/internal/xerrors"
)

type TransactionType string

const (
	TxDebit  TransactionType = "DEBIT"
	TxCredit TransactionType = "CREDIT"
)

// BalanceTolerance is the maximum accepted drift between the declared balance
// and the balance replayed from the transaction list (0.01 currency unit).
var BalanceTolerance = decimal.NewFromFloat(0.01)

// WalletTransaction is an immutable ledger entry. Corrections are new
// offsetting entries, never updates.
type WalletTransaction struct {
	ID          uuid.UUID
	WalletID    uuid.UUID
	Type        TransactionType
	Amount      decimal.Decimal
	OrderID     *uuid.UUID
	Description string
	CreatedAt   time.Time
}

// Wallet is the ledger aggregate. Balance is derived from the transaction
// history; it is never stored as an independent column.
type Wallet struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	Balance      decimal.Decimal
	Transactions []WalletTransaction

	// pending holds transactions appended since the wallet was loaded;
	// the repository persists exactly these on save.
	pending []WalletTransaction
}

func NewWallet(customerID uuid.UUID) *Wallet {
	return &Wallet{
		ID:         uuid.New(),
		CustomerID: customerID,
		Balance:    decimal.Zero,
	}
}

func (w *Wallet) Debit(amount decimal.Decimal, orderID *uuid.UUID, description string) (*WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, xerrors.ErrInvalidAmount
	}
	if w.Balance.LessThan(amount) {
		return nil, xerrors.ErrInsufficientBalance
	}
	txn := w.append(TxDebit, amount, orderID, description)
	w.Balance = w.Balance.Sub(amount)
	return txn, nil
}

func (w *Wallet) Credit(amount decimal.Decimal, orderID *uuid.UUID, description string) (*WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, xerrors.ErrInvalidAmount
	}
	txn := w.append(TxCredit, amount, orderID, description)
	w.Balance = w.Balance.Add(amount)
	return txn, nil
}

func (w *Wallet) append(txType TransactionType, amount decimal.Decimal, orderID *uuid.UUID, description string) *WalletTransaction {
	txn := WalletTransaction{
		ID:          uuid.New(),
		WalletID:    w.ID,
		Type:        txType,
		Amount:      amount,
		OrderID:     orderID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	w.Transactions = append(w.Transactions, txn)
	w.pending = append(w.pending, txn)
	return &txn
}

// PendingTransactions returns the entries appended since load, in order.
func (w *Wallet) PendingTransactions() []WalletTransaction {
	return w.pending
}

// ClearPending is called by the repository after the pending entries are
// persisted.
func (w *Wallet) ClearPending() {
	w.pending = nil
}

// ReplayBalance recomputes the balance from the full transaction list. The
// result is the authoritative balance; callers must not trust the declared
// balance when it deviates by more than BalanceTolerance.
func (w *Wallet) ReplayBalance() decimal.Decimal {
	balance := decimal.Zero
	for _, txn := range w.Transactions {
		if txn.Type == TxCredit {
			balance = balance.Add(txn.Amount)
		} else {
			balance = balance.Sub(txn.Amount)
		}
	}
	return balance
}
