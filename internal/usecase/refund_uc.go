package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/repository"
	"orders-wallet-service/internal/xerrors"
)

type RefundResult struct {
	OrderID        uuid.UUID       `json:"orderId"`
	Status         string          `json:"status"`
	AmountRefunded decimal.Decimal `json:"amountRefunded"`
}

// RefundUsecase is the compensation half of the capture saga: the forward
// operation (capture) has a defined inverse that restores wallet state within
// a single local transaction, no cross-service coordinator needed.
type RefundUsecase struct {
	orderRepo  repository.OrderRepository
	walletRepo repository.WalletRepository
	eventStore repository.EventStoreRepository
	outboxRepo repository.OutboxRepository
	txm        repository.TxManager
	locks      repository.LockManager
	walletUC   *WalletUsecase
	logger     *zap.Logger
}

func NewRefundUsecase(
	orderRepo repository.OrderRepository,
	walletRepo repository.WalletRepository,
	eventStore repository.EventStoreRepository,
	outboxRepo repository.OutboxRepository,
	txm repository.TxManager,
	locks repository.LockManager,
	walletUC *WalletUsecase,
	logger *zap.Logger,
) *RefundUsecase {
	return &RefundUsecase{
		orderRepo:  orderRepo,
		walletRepo: walletRepo,
		eventStore: eventStore,
		outboxRepo: outboxRepo,
		txm:        txm,
		locks:      locks,
		walletUC:   walletUC,
		logger:     logger,
	}
}

// RefundOrder credits the order total back, claws back the capture bonus when
// the wallet can afford it, and marks the order REFUNDED. Bonus claw-back is
// skipped (not deferred) when the customer already spent the bonus; see
// DESIGN.md for the policy decision.
func (uc *RefundUsecase) RefundOrder(ctx context.Context, orderID uuid.UUID) (*RefundResult, error) {
	var (
		result         *RefundResult
		customerID     uuid.UUID
		settledBalance decimal.Decimal
	)
	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order, err := uc.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderPaid {
			return xerrors.ErrInvalidState
		}

		wallet, err := uc.walletRepo.GetByCustomerID(ctx, tx, order.CustomerID)
		if err != nil {
			return err
		}

		if err := uc.locks.AcquireWalletLock(ctx, tx, wallet.ID); err != nil {
			return err
		}
		wallet, err = uc.walletRepo.GetByID(ctx, tx, wallet.ID)
		if err != nil {
			return err
		}

		total := order.TotalAmount()
		if _, err := wallet.Credit(total, &order.ID, fmt.Sprintf("Refund for order %s", order.ID)); err != nil {
			return err
		}
		ev := domain.NewWalletCredited(wallet.ID, total, &order.ID,
			fmt.Sprintf("Refund for order %s", order.ID), wallet.Balance)
		if err := uc.record(ctx, tx, ev, domain.AggregateWallet); err != nil {
			return err
		}

		// Compensation may be partial: the bonus is only debited when the
		// balance still covers it.
		bonus := total.Mul(BonusRate)
		if wallet.Balance.GreaterThanOrEqual(bonus) {
			desc := fmt.Sprintf("Bonus compensation for refunded order %s", order.ID)
			if _, err := wallet.Debit(bonus, &order.ID, desc); err != nil {
				return err
			}
			ev = domain.NewWalletDebited(wallet.ID, bonus, &order.ID, desc, wallet.Balance)
			if err := uc.record(ctx, tx, ev, domain.AggregateWallet); err != nil {
				return err
			}
		} else {
			uc.logger.Warn("bonus compensation skipped, balance below bonus",
				zap.String("order_id", order.ID.String()),
				zap.String("wallet_id", wallet.ID.String()),
				zap.String("bonus", bonus.StringFixed(2)))
		}

		if err := order.MarkRefunded(); err != nil {
			return err
		}
		if err := uc.orderRepo.UpdateStatus(ctx, tx, order.ID, order.Status); err != nil {
			return err
		}
		if err := uc.walletRepo.SaveTransactions(ctx, tx, wallet); err != nil {
			return err
		}
		if err := uc.record(ctx, tx, domain.NewOrderRefunded(order.ID, total), domain.AggregateOrder); err != nil {
			return err
		}

		result = &RefundResult{OrderID: order.ID, Status: string(order.Status), AmountRefunded: total}
		customerID = order.CustomerID
		settledBalance = wallet.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.walletUC.AfterWalletChange(ctx, customerID, settledBalance)
	uc.logger.Info("order refunded",
		zap.String("order_id", result.OrderID.String()),
		zap.String("amount", result.AmountRefunded.StringFixed(2)))
	return result, nil
}

func (uc *RefundUsecase) record(ctx context.Context, tx pgx.Tx, ev *domain.Event, aggregateType string) error {
	if err := uc.eventStore.Append(ctx, tx, ev, aggregateType); err != nil {
		return err
	}
	if _, err := uc.outboxRepo.Add(ctx, tx, ev, aggregateType); err != nil {
		return err
	}
	return nil
}
