package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/repository"
	"orders-wallet-service/internal/xerrors"
)

// Publisher relays processed outbox events to a broker. Implementations live
// in internal/worker.
type Publisher interface {
	Publish(ctx context.Context, id string, eventType string, payload []byte) error
}

// ProjectorUsecase drains the outbox and rebuilds the read models. Handlers
// are idempotent upserts, so at-least-once delivery and replays are harmless.
// A failing event only increments its retry counter; the batch always
// continues.
type ProjectorUsecase struct {
	outboxRepo   repository.OutboxRepository
	readModels   repository.ReadModelRepository
	customerRepo repository.CustomerRepository
	publisher    Publisher
	logger       *zap.Logger
}

func NewProjectorUsecase(
	outboxRepo repository.OutboxRepository,
	readModels repository.ReadModelRepository,
	customerRepo repository.CustomerRepository,
	publisher Publisher,
	logger *zap.Logger,
) *ProjectorUsecase {
	return &ProjectorUsecase{
		outboxRepo:   outboxRepo,
		readModels:   readModels,
		customerRepo: customerRepo,
		publisher:    publisher,
		logger:       logger,
	}
}

// Drain processes up to limit unprocessed outbox events, oldest first.
// Returns the number successfully processed.
func (uc *ProjectorUsecase) Drain(ctx context.Context, limit int) (int, error) {
	events, err := uc.outboxRepo.FetchUnprocessed(ctx, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, ev := range events {
		if err := uc.apply(ctx, ev); err != nil {
			uc.logger.Error("projector handler failed",
				zap.String("outbox_id", ev.ID),
				zap.String("event_type", ev.EventType),
				zap.Error(err))
			if err := uc.outboxRepo.IncrementRetry(ctx, ev.ID); err != nil {
				uc.logger.Error("failed to increment retry", zap.String("outbox_id", ev.ID), zap.Error(err))
			}
			continue
		}

		if uc.publisher != nil {
			if err := uc.publisher.Publish(ctx, ev.ID, ev.EventType, ev.Payload); err != nil {
				// Not marked processed: redelivered next drain cycle.
				uc.logger.Warn("failed to publish outbox event",
					zap.String("outbox_id", ev.ID), zap.Error(err))
				if err := uc.outboxRepo.IncrementRetry(ctx, ev.ID); err != nil {
					uc.logger.Error("failed to increment retry", zap.String("outbox_id", ev.ID), zap.Error(err))
				}
				continue
			}
		}

		if err := uc.outboxRepo.MarkProcessed(ctx, ev.ID); err != nil {
			uc.logger.Error("failed to mark processed", zap.String("outbox_id", ev.ID), zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}

func (uc *ProjectorUsecase) apply(ctx context.Context, ev domain.OutboxEvent) error {
	switch ev.EventType {
	case domain.EventOrderCreated:
		return uc.applyOrderCreated(ctx, ev)
	case domain.EventOrderConfirmed:
		return uc.readModels.SetOrderStatus(ctx, ev.AggregateID, string(domain.OrderPending))
	case domain.EventOrderPaid:
		return uc.readModels.SetOrderStatus(ctx, ev.AggregateID, string(domain.OrderPaid))
	case domain.EventOrderRefunded:
		return uc.readModels.SetOrderStatus(ctx, ev.AggregateID, string(domain.OrderRefunded))
	case domain.EventOrderCancelled:
		return uc.readModels.SetOrderStatus(ctx, ev.AggregateID, string(domain.OrderCancelled))
	case domain.EventWalletCreated:
		return uc.applyWalletCreated(ctx, ev)
	case domain.EventWalletDebited, domain.EventWalletCredited:
		return uc.applyWalletMovement(ctx, ev)
	default:
		// Unknown event types are skipped, not failed: new producers must not
		// wedge an old projector.
		uc.logger.Warn("unknown outbox event type", zap.String("event_type", ev.EventType))
		return nil
	}
}

func (uc *ProjectorUsecase) applyOrderCreated(ctx context.Context, ev domain.OutboxEvent) error {
	var payload struct {
		CustomerID  string `json:"customer_id"`
		TotalAmount string `json:"total_amount"`
		ItemsCount  int    `json:"items_count"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode OrderCreated payload: %w", err)
	}
	customerID, err := uuid.Parse(payload.CustomerID)
	if err != nil {
		return fmt.Errorf("invalid customer id in OrderCreated payload: %w", err)
	}
	total, err := decimal.NewFromString(payload.TotalAmount)
	if err != nil {
		return fmt.Errorf("invalid total amount in OrderCreated payload: %w", err)
	}

	customerName := "Unknown Customer"
	customer, err := uc.customerRepo.GetByID(ctx, customerID)
	if err == nil {
		customerName = customer.Name
	} else if !errors.Is(err, xerrors.ErrCustomerNotFound) {
		return err
	}

	return uc.readModels.UpsertOrderSummary(ctx, &domain.OrderSummary{
		ID:            ev.AggregateID,
		CustomerID:    customerID,
		CustomerName:  customerName,
		Status:        string(domain.OrderDraft),
		TotalAmount:   total,
		ItemsCount:    payload.ItemsCount,
		CreatedAtRead: ev.CreatedAt,
	})
}

func (uc *ProjectorUsecase) applyWalletCreated(ctx context.Context, ev domain.OutboxEvent) error {
	var payload struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode WalletCreated payload: %w", err)
	}
	customerID, err := uuid.Parse(payload.CustomerID)
	if err != nil {
		return fmt.Errorf("invalid customer id in WalletCreated payload: %w", err)
	}
	return uc.readModels.UpsertWalletView(ctx, &domain.WalletView{
		ID:         ev.AggregateID,
		CustomerID: customerID,
		Balance:    decimal.Zero,
	})
}

func (uc *ProjectorUsecase) applyWalletMovement(ctx context.Context, ev domain.OutboxEvent) error {
	var payload struct {
		NewBalance string `json:"new_balance"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode wallet movement payload: %w", err)
	}
	balance, err := decimal.NewFromString(payload.NewBalance)
	if err != nil {
		return fmt.Errorf("invalid balance in wallet movement payload: %w", err)
	}
	return uc.readModels.ApplyWalletMovement(ctx, ev.AggregateID, ev.ID, balance, time.Now().UTC())
}
