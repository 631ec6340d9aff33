package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"orders-wallet-service/internal/response"
	"orders-wallet-service/internal/usecase"
	"orders-wallet-service/internal/xerrors"
)

// Idempotency headers accepted on every mutating route.
const (
	headerIdempotencyKey = "Idempotency-Key"
	headerActorID        = "X-Actor-ID"
)

func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrInvalidQuantity),
		errors.Is(err, xerrors.ErrNegativePrice),
		errors.Is(err, xerrors.ErrInvalidAmount),
		errors.Is(err, xerrors.ErrEmptyOrder),
		errors.Is(err, xerrors.ErrOrderNotDraft):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, xerrors.ErrCustomerNotFound),
		errors.Is(err, xerrors.ErrOrderNotFound),
		errors.Is(err, xerrors.ErrWalletNotFound),
		errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, xerrors.ErrInvalidState):
		return http.StatusConflict, err.Error()
	case errors.Is(err, xerrors.ErrInsufficientBalance):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, xerrors.ErrDuplicateRequest):
		return http.StatusConflict, err.Error()
	default:
		// Storage internals never leak to callers.
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFromError(err)
	response.Error(w, status, msg)
}

func CreateCustomerHandler(orderUC *usecase.OrderUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		customer, err := orderUC.CreateCustomer(r.Context(), body.Name, body.Email)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusCreated, customer)
	}
}

func CreateOrderHandler(orderUC *usecase.OrderUsecase, idemUC *usecase.IdempotencyUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CustomerID uuid.UUID           `json:"customerId"`
			Items      []usecase.ItemInput `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		payload, err := idemUC.Execute(r.Context(),
			r.Header.Get(headerIdempotencyKey), r.Header.Get(headerActorID),
			usecase.OpCreateOrder, body,
			func(ctx context.Context) (any, error) {
				return orderUC.CreateOrder(ctx, body.CustomerID, body.Items)
			})
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusCreated, json.RawMessage(payload))
	}
}

func CapturePaymentHandler(orderUC *usecase.OrderUsecase, idemUC *usecase.IdempotencyUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid order id")
			return
		}

		payload, err := idemUC.Execute(r.Context(),
			r.Header.Get(headerIdempotencyKey), r.Header.Get(headerActorID),
			usecase.OpCapturePayment, map[string]string{"orderId": orderID.String()},
			func(ctx context.Context) (any, error) {
				return orderUC.CapturePayment(ctx, orderID)
			})
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, json.RawMessage(payload))
	}
}

func RefundOrderHandler(refundUC *usecase.RefundUsecase, idemUC *usecase.IdempotencyUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid order id")
			return
		}

		payload, err := idemUC.Execute(r.Context(),
			r.Header.Get(headerIdempotencyKey), r.Header.Get(headerActorID),
			usecase.OpRefundOrder, map[string]string{"orderId": orderID.String()},
			func(ctx context.Context) (any, error) {
				return refundUC.RefundOrder(ctx, orderID)
			})
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, json.RawMessage(payload))
	}
}

func CancelOrderHandler(orderUC *usecase.OrderUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid order id")
			return
		}

		result, err := orderUC.CancelOrder(r.Context(), orderID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

func GetOrderHandler(orderUC *usecase.OrderUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid order id")
			return
		}

		order, err := orderUC.GetOrder(r.Context(), orderID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]any{
			"id":          order.ID,
			"customerId":  order.CustomerID,
			"status":      order.Status,
			"items":       order.Items,
			"totalAmount": order.TotalAmount(),
		})
	}
}

func ListOrdersHandler(orderUC *usecase.OrderUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid customer id")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		orders, err := orderUC.ListOrdersByCustomer(r.Context(), customerID, limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, orders)
	}
}
