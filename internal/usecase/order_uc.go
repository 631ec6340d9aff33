package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/repository"
	"orders-wallet-service/internal/xerrors"
)

// BonusRate is the loyalty bonus credited on every captured payment (5% of
// the order total).
var BonusRate = decimal.NewFromFloat(0.05)

type ItemInput struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CreateOrderResult struct {
	OrderID uuid.UUID `json:"orderId"`
	Status  string    `json:"status"`
}

type CaptureResult struct {
	OrderID       uuid.UUID       `json:"orderId"`
	Status        string          `json:"status"`
	AmountDebited decimal.Decimal `json:"amountDebited"`
	BonusCredited decimal.Decimal `json:"bonusCredited"`
}

type CancelResult struct {
	OrderID uuid.UUID `json:"orderId"`
	Status  string    `json:"status"`
}

type OrderUsecase struct {
	orderRepo    repository.OrderRepository
	customerRepo repository.CustomerRepository
	walletRepo   repository.WalletRepository
	eventStore   repository.EventStoreRepository
	outboxRepo   repository.OutboxRepository
	readModels   repository.ReadModelRepository
	txm          repository.TxManager
	locks        repository.LockManager
	walletUC     *WalletUsecase
	logger       *zap.Logger
}

func NewOrderUsecase(
	orderRepo repository.OrderRepository,
	customerRepo repository.CustomerRepository,
	walletRepo repository.WalletRepository,
	eventStore repository.EventStoreRepository,
	outboxRepo repository.OutboxRepository,
	readModels repository.ReadModelRepository,
	txm repository.TxManager,
	locks repository.LockManager,
	walletUC *WalletUsecase,
	logger *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		walletRepo:   walletRepo,
		eventStore:   eventStore,
		outboxRepo:   outboxRepo,
		readModels:   readModels,
		txm:          txm,
		locks:        locks,
		walletUC:     walletUC,
		logger:       logger,
	}
}

// CreateOrder validates the customer and items, persists a DRAFT order and
// emits OrderCreated, all in one transaction. Validation failures leave no
// side effects.
func (uc *OrderUsecase) CreateOrder(ctx context.Context, customerID uuid.UUID, items []ItemInput) (*CreateOrderResult, error) {
	customer, err := uc.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", xerrors.ErrInvalidInput)
	}

	order := domain.NewOrder(customer.ID)
	for _, item := range items {
		if err := order.AddItem(item.ProductID, item.Quantity, item.Price); err != nil {
			return nil, fmt.Errorf("%w: %w", xerrors.ErrInvalidInput, err)
		}
	}

	err = uc.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := uc.orderRepo.Create(ctx, tx, order); err != nil {
			return err
		}
		ev := domain.NewOrderCreated(order.ID, customer.ID, order.TotalAmount(), len(order.Items))
		return uc.record(ctx, tx, ev, domain.AggregateOrder)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", customer.ID.String()))
	return &CreateOrderResult{OrderID: order.ID, Status: string(order.Status)}, nil
}

// CapturePayment confirms the order if still DRAFT, then inside the wallet
// lock debits the order total, credits the 5% bonus and marks the order PAID.
// All effects commit atomically or not at all.
func (uc *OrderUsecase) CapturePayment(ctx context.Context, orderID uuid.UUID) (*CaptureResult, error) {
	var (
		result         *CaptureResult
		customerID     uuid.UUID
		settledBalance decimal.Decimal
	)
	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order, err := uc.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.Status == domain.OrderDraft {
			if err := order.Confirm(); err != nil {
				return err
			}
			if err := uc.orderRepo.UpdateStatus(ctx, tx, order.ID, order.Status); err != nil {
				return err
			}
			if err := uc.record(ctx, tx, domain.NewOrderConfirmed(order.ID), domain.AggregateOrder); err != nil {
				return err
			}
		}
		if order.Status != domain.OrderPending {
			return xerrors.ErrInvalidState
		}

		wallet, err := uc.walletRepo.GetByCustomerID(ctx, tx, order.CustomerID)
		if errors.Is(err, xerrors.ErrWalletNotFound) {
			wallet = domain.NewWallet(order.CustomerID)
			if err := uc.walletRepo.Create(ctx, tx, wallet); err != nil {
				return err
			}
			if err := uc.record(ctx, tx, domain.NewWalletCreated(wallet.ID, order.CustomerID), domain.AggregateWallet); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		// Sole guard against two commands double-spending this wallet. Held
		// until commit or rollback.
		if err := uc.locks.AcquireWalletLock(ctx, tx, wallet.ID); err != nil {
			return err
		}
		wallet, err = uc.walletRepo.GetByID(ctx, tx, wallet.ID)
		if err != nil {
			return err
		}

		total := order.TotalAmount()
		if _, err := wallet.Debit(total, &order.ID, fmt.Sprintf("Payment for order %s", order.ID)); err != nil {
			return err
		}
		ev := domain.NewWalletDebited(wallet.ID, total, &order.ID,
			fmt.Sprintf("Payment for order %s", order.ID), wallet.Balance)
		if err := uc.record(ctx, tx, ev, domain.AggregateWallet); err != nil {
			return err
		}

		bonus := total.Mul(BonusRate)
		if _, err := wallet.Credit(bonus, &order.ID, fmt.Sprintf("Bonus for order %s", order.ID)); err != nil {
			return err
		}
		ev = domain.NewWalletCredited(wallet.ID, bonus, &order.ID,
			fmt.Sprintf("Bonus for order %s", order.ID), wallet.Balance)
		if err := uc.record(ctx, tx, ev, domain.AggregateWallet); err != nil {
			return err
		}

		if err := order.MarkPaid(); err != nil {
			return err
		}
		if err := uc.orderRepo.UpdateStatus(ctx, tx, order.ID, order.Status); err != nil {
			return err
		}
		if err := uc.walletRepo.SaveTransactions(ctx, tx, wallet); err != nil {
			return err
		}
		if err := uc.record(ctx, tx, domain.NewOrderPaid(order.ID, total), domain.AggregateOrder); err != nil {
			return err
		}

		result = &CaptureResult{
			OrderID:       order.ID,
			Status:        string(order.Status),
			AmountDebited: total,
			BonusCredited: bonus,
		}
		customerID = order.CustomerID
		settledBalance = wallet.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.walletUC.AfterWalletChange(ctx, customerID, settledBalance)
	uc.logger.Info("payment captured",
		zap.String("order_id", result.OrderID.String()),
		zap.String("amount", result.AmountDebited.StringFixed(2)),
		zap.String("bonus", result.BonusCredited.StringFixed(2)))
	return result, nil
}

// CancelOrder aborts a DRAFT or PENDING order. No money moves.
func (uc *OrderUsecase) CancelOrder(ctx context.Context, orderID uuid.UUID) (*CancelResult, error) {
	var result *CancelResult
	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order, err := uc.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := order.Cancel(); err != nil {
			return err
		}
		if err := uc.orderRepo.UpdateStatus(ctx, tx, order.ID, order.Status); err != nil {
			return err
		}
		if err := uc.record(ctx, tx, domain.NewOrderCancelled(order.ID), domain.AggregateOrder); err != nil {
			return err
		}
		result = &CancelResult{OrderID: order.ID, Status: string(order.Status)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *OrderUsecase) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return uc.orderRepo.GetByID(ctx, nil, orderID)
}

// ListOrdersByCustomer serves from the order_summaries read model; results may
// trail the write model until the projector catches up.
func (uc *OrderUsecase) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.OrderSummary, error) {
	if _, err := uc.customerRepo.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return uc.readModels.ListOrderSummariesByCustomer(ctx, customerID, limit, offset)
}

// CreateCustomer registers a customer so orders and balances can reference it.
func (uc *OrderUsecase) CreateCustomer(ctx context.Context, name, email string) (*domain.Customer, error) {
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", xerrors.ErrInvalidInput)
	}
	customer := domain.NewCustomer(name, email)
	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return uc.customerRepo.Create(ctx, tx, customer)
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (uc *OrderUsecase) record(ctx context.Context, tx pgx.Tx, ev *domain.Event, aggregateType string) error {
	if err := uc.eventStore.Append(ctx, tx, ev, aggregateType); err != nil {
		return err
	}
	if _, err := uc.outboxRepo.Add(ctx, tx, ev, aggregateType); err != nil {
		return err
	}
	return nil
}
