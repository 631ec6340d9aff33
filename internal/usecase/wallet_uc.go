package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/repository"
	"orders-wallet-service/internal/xerrors"
)

const balanceCacheTTL = time.Minute

type BalanceResult struct {
	CustomerID uuid.UUID       `json:"customerId"`
	Balance    decimal.Decimal `json:"balance"`
}

type DepositResult struct {
	CustomerID uuid.UUID       `json:"customerId"`
	WalletID   uuid.UUID       `json:"walletId"`
	Balance    decimal.Decimal `json:"balance"`
}

type WalletUsecase struct {
	walletRepo   repository.WalletRepository
	customerRepo repository.CustomerRepository
	eventStore   repository.EventStoreRepository
	outboxRepo   repository.OutboxRepository
	txm          repository.TxManager
	locks        repository.LockManager
	redisClient  *redis.Client
	notifier     *Notifier
	logger       *zap.Logger
}

func NewWalletUsecase(
	walletRepo repository.WalletRepository,
	customerRepo repository.CustomerRepository,
	eventStore repository.EventStoreRepository,
	outboxRepo repository.OutboxRepository,
	txm repository.TxManager,
	locks repository.LockManager,
	redisClient *redis.Client,
	notifier *Notifier,
	logger *zap.Logger,
) *WalletUsecase {
	return &WalletUsecase{
		walletRepo:   walletRepo,
		customerRepo: customerRepo,
		eventStore:   eventStore,
		outboxRepo:   outboxRepo,
		txm:          txm,
		locks:        locks,
		redisClient:  redisClient,
		notifier:     notifier,
		logger:       logger,
	}
}

// GetBalance returns the replayed wallet balance for a customer; absent
// wallets read as zero. Results are cached briefly, the cache is invalidated
// by every capture, refund and deposit.
func (uc *WalletUsecase) GetBalance(ctx context.Context, customerID uuid.UUID) (*BalanceResult, error) {
	if _, err := uc.customerRepo.GetByID(ctx, customerID); err != nil {
		return nil, err
	}

	cacheKey := balanceCacheKey(customerID)
	if uc.redisClient != nil {
		if val, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var cached BalanceResult
			if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
				return &cached, nil
			}
		}
	}

	result := &BalanceResult{CustomerID: customerID, Balance: decimal.Zero}
	wallet, err := uc.walletRepo.GetByCustomerID(ctx, nil, customerID)
	switch {
	case errors.Is(err, xerrors.ErrWalletNotFound):
		// No wallet yet: balance is zero.
	case err != nil:
		return nil, err
	default:
		result.Balance = wallet.Balance
	}

	if uc.redisClient != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = uc.redisClient.Set(ctx, cacheKey, data, balanceCacheTTL).Err()
		}
	}
	return result, nil
}

// Deposit credits external funds into the customer's wallet, creating the
// wallet on first use. Runs under the same lock and transaction discipline as
// capture/refund.
func (uc *WalletUsecase) Deposit(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description string) (*DepositResult, error) {
	if !amount.IsPositive() {
		return nil, xerrors.ErrInvalidAmount
	}
	if _, err := uc.customerRepo.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	if description == "" {
		description = "Deposit"
	}

	var result *DepositResult
	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		wallet, err := uc.walletRepo.GetByCustomerID(ctx, tx, customerID)
		if errors.Is(err, xerrors.ErrWalletNotFound) {
			wallet = domain.NewWallet(customerID)
			if err := uc.walletRepo.Create(ctx, tx, wallet); err != nil {
				return err
			}
			if err := uc.record(ctx, tx, domain.NewWalletCreated(wallet.ID, customerID), domain.AggregateWallet); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := uc.locks.AcquireWalletLock(ctx, tx, wallet.ID); err != nil {
			return err
		}
		wallet, err = uc.walletRepo.GetByID(ctx, tx, wallet.ID)
		if err != nil {
			return err
		}

		if _, err := wallet.Credit(amount, nil, description); err != nil {
			return err
		}
		ev := domain.NewWalletCredited(wallet.ID, amount, nil, description, wallet.Balance)
		if err := uc.record(ctx, tx, ev, domain.AggregateWallet); err != nil {
			return err
		}
		if err := uc.walletRepo.SaveTransactions(ctx, tx, wallet); err != nil {
			return err
		}

		result = &DepositResult{CustomerID: customerID, WalletID: wallet.ID, Balance: wallet.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.AfterWalletChange(ctx, customerID, result.Balance)
	return result, nil
}

func (uc *WalletUsecase) record(ctx context.Context, tx pgx.Tx, ev *domain.Event, aggregateType string) error {
	if err := uc.eventStore.Append(ctx, tx, ev, aggregateType); err != nil {
		return err
	}
	if _, err := uc.outboxRepo.Add(ctx, tx, ev, aggregateType); err != nil {
		return err
	}
	return nil
}

// AfterWalletChange invalidates the balance cache and pushes the new balance
// to websocket subscribers. Called after the owning transaction commits.
func (uc *WalletUsecase) AfterWalletChange(ctx context.Context, customerID uuid.UUID, balance decimal.Decimal) {
	if uc.redisClient != nil {
		_ = uc.redisClient.Del(ctx, balanceCacheKey(customerID)).Err()
	}
	if uc.notifier != nil {
		uc.notifier.NotifyBalance(customerID.String(), balance)
	}
}

func balanceCacheKey(customerID uuid.UUID) string {
	return fmt.Sprintf("wallet:balance:%s", customerID)
}
