package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventVersionV1 = "v1"

// Aggregate type discriminators used by the event store and outbox.
const (
	AggregateOrder  = "Order"
	AggregateWallet = "Wallet"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderPaid      = "OrderPaid"
	EventOrderRefunded  = "OrderRefunded"
	EventOrderCancelled = "OrderCancelled"
	EventWalletCreated  = "WalletCreated"
	EventWalletDebited  = "WalletDebited"
	EventWalletCredited = "WalletCredited"
)

// Event is an immutable domain event. Payload carries the event-specific
// fields serialized as JSON; monetary amounts are serialized as strings so the
// projector can round-trip them through decimal without float drift.
type Event struct {
	EventID     uuid.UUID
	AggregateID uuid.UUID
	EventType   string
	Version     string
	OccurredAt  time.Time
	Payload     json.RawMessage
}

func newEvent(aggregateID uuid.UUID, eventType string, fields map[string]any) *Event {
	ev := &Event{
		EventID:     uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Version:     EventVersionV1,
		OccurredAt:  time.Now().UTC(),
	}
	payload := map[string]any{
		"event_id":     ev.EventID.String(),
		"aggregate_id": aggregateID.String(),
		"event_type":   eventType,
		"version":      ev.Version,
	}
	for k, v := range fields {
		payload[k] = v
	}
	ev.Payload, _ = json.Marshal(payload)
	return ev
}

func NewOrderCreated(orderID, customerID uuid.UUID, totalAmount decimal.Decimal, itemsCount int) *Event {
	return newEvent(orderID, EventOrderCreated, map[string]any{
		"customer_id":  customerID.String(),
		"total_amount": totalAmount.StringFixed(2),
		"items_count":  itemsCount,
	})
}

func NewOrderConfirmed(orderID uuid.UUID) *Event {
	return newEvent(orderID, EventOrderConfirmed, nil)
}

func NewOrderPaid(orderID uuid.UUID, amount decimal.Decimal) *Event {
	return newEvent(orderID, EventOrderPaid, map[string]any{
		"amount": amount.StringFixed(2),
	})
}

func NewOrderRefunded(orderID uuid.UUID, amount decimal.Decimal) *Event {
	return newEvent(orderID, EventOrderRefunded, map[string]any{
		"amount": amount.StringFixed(2),
	})
}

func NewOrderCancelled(orderID uuid.UUID) *Event {
	return newEvent(orderID, EventOrderCancelled, nil)
}

func NewWalletCreated(walletID, customerID uuid.UUID) *Event {
	return newEvent(walletID, EventWalletCreated, map[string]any{
		"customer_id": customerID.String(),
	})
}

func NewWalletDebited(walletID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, description string, newBalance decimal.Decimal) *Event {
	return newEvent(walletID, EventWalletDebited, walletMovementFields(amount, orderID, description, newBalance))
}

func NewWalletCredited(walletID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, description string, newBalance decimal.Decimal) *Event {
	return newEvent(walletID, EventWalletCredited, walletMovementFields(amount, orderID, description, newBalance))
}

func walletMovementFields(amount decimal.Decimal, orderID *uuid.UUID, description string, newBalance decimal.Decimal) map[string]any {
	fields := map[string]any{
		"amount":      amount.StringFixed(2),
		"description": description,
		"new_balance": newBalance.StringFixed(2),
	}
	if orderID != nil {
		fields["order_id"] = orderID.String()
	}
	return fields
}

// StoredEvent is an event as read back from the event store, with its
// per-aggregate sequence number.
type StoredEvent struct {
	ID             string
	AggregateID    uuid.UUID
	AggregateType  string
	EventType      string
	Version        string
	Payload        json.RawMessage
	SequenceNumber int64
	CreatedAt      time.Time
}

// OutboxEvent is a pending delivery row written in the same transaction as the
// triggering domain event.
type OutboxEvent struct {
	ID            string
	AggregateID   uuid.UUID
	AggregateType string
	EventType     string
	Payload       json.RawMessage
	Processed     bool
	ProcessedAt   *time.Time
	RetryCount    int
	CreatedAt     time.Time
}

// IdempotencyRecord caches the response of a completed mutating command,
// unique per (key, actor, operation).
type IdempotencyRecord struct {
	Key             string
	ActorID         string
	Operation       string
	RequestHash     string
	ResponsePayload json.RawMessage
	CreatedAt       time.Time
}

// Read models maintained by the projector.

type OrderSummary struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ItemsCount    int             `json:"items_count"`
	CreatedAtRead time.Time       `json:"created_at_read"`
}

type WalletView struct {
	ID                uuid.UUID       `json:"id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	Balance           decimal.Decimal `json:"balance"`
	TransactionsCount int             `json:"transactions_count"`
	LastTransactionAt *time.Time      `json:"last_transaction_at,omitempty"`

	// LastEventID is the projection watermark: the outbox id of the newest
	// movement applied to this view. Not part of the API payload.
	LastEventID string `json:"-"`
}
