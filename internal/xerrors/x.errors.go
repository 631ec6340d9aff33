package xerrors

import "errors"
import "github.com/jackc/pgx/v5/pgconn"

// PG error code for unique_violation, used to detect idempotency races.
const PGUniqueViolation = "23505"

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// Generic
var (
	ErrInternalServer = errors.New("internal server error")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input provided")
)

// Commands
var (
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrDuplicateRequest    = errors.New("idempotency key already used with different request")
	ErrBalanceMismatch     = errors.New("declared balance deviates from replayed balance")
)

// Order aggregate
var (
	ErrOrderNotDraft   = errors.New("can only add items to draft orders")
	ErrEmptyOrder      = errors.New("cannot confirm empty order")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrNegativePrice   = errors.New("price must be non-negative")
	ErrInvalidAmount   = errors.New("transaction amount must be positive")
)
