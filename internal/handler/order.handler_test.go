package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"orders-wallet-service/internal/xerrors"
)

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{xerrors.ErrInvalidInput, http.StatusBadRequest},
		{xerrors.ErrInvalidQuantity, http.StatusBadRequest},
		{xerrors.ErrEmptyOrder, http.StatusBadRequest},
		{xerrors.ErrCustomerNotFound, http.StatusNotFound},
		{xerrors.ErrOrderNotFound, http.StatusNotFound},
		{xerrors.ErrInvalidState, http.StatusConflict},
		{xerrors.ErrDuplicateRequest, http.StatusConflict},
		{xerrors.ErrInsufficientBalance, http.StatusPaymentRequired},
		{fmt.Errorf("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if status, _ := statusFromError(tc.err); status != tc.want {
			t.Errorf("statusFromError(%v) = %d, want %d", tc.err, status, tc.want)
		}
	}

	// Wrapped sentinels map the same as bare ones.
	wrapped := fmt.Errorf("capture failed: %w", xerrors.ErrInsufficientBalance)
	if status, _ := statusFromError(wrapped); status != http.StatusPaymentRequired {
		t.Errorf("wrapped sentinel status = %d, want 402", status)
	}

	// Internal errors never leak their message.
	if _, msg := statusFromError(fmt.Errorf("pq: relation orders does not exist")); msg != "internal server error" {
		t.Errorf("internal message leaked: %q", msg)
	}
}

func TestGetOrderHandlerRejectsBadID(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/orders/{orderID}", GetOrderHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
