package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orders-wallet-service/internal/xerrors"
)

type OrderStatus string

const (
	OrderDraft     OrderStatus = "DRAFT"
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderRefunded  OrderStatus = "REFUNDED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// OrderItem is an immutable line item. Items cannot change once the order
// leaves DRAFT.
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate root for the order state machine. All transitions are
// pure in-memory mutations; persistence and event emission belong to the caller.
type Order struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Status     OrderStatus
	Items      []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewOrder(customerID uuid.UUID) *Order {
	return &Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     OrderDraft,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func (o *Order) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (o *Order) AddItem(productID uuid.UUID, quantity int, price decimal.Decimal) error {
	if o.Status != OrderDraft {
		return xerrors.ErrOrderNotDraft
	}
	if quantity <= 0 {
		return xerrors.ErrInvalidQuantity
	}
	if price.IsNegative() {
		return xerrors.ErrNegativePrice
	}
	o.Items = append(o.Items, OrderItem{ProductID: productID, Quantity: quantity, Price: price})
	return nil
}

func (o *Order) Confirm() error {
	if o.Status != OrderDraft {
		return xerrors.ErrInvalidState
	}
	if len(o.Items) == 0 {
		return xerrors.ErrEmptyOrder
	}
	o.Status = OrderPending
	return nil
}

func (o *Order) MarkPaid() error {
	if o.Status != OrderPending {
		return xerrors.ErrInvalidState
	}
	o.Status = OrderPaid
	return nil
}

func (o *Order) MarkRefunded() error {
	if o.Status != OrderPaid {
		return xerrors.ErrInvalidState
	}
	o.Status = OrderRefunded
	return nil
}

func (o *Order) Cancel() error {
	if o.Status == OrderPaid || o.Status == OrderRefunded || o.Status == OrderCancelled {
		return xerrors.ErrInvalidState
	}
	o.Status = OrderCancelled
	return nil
}
