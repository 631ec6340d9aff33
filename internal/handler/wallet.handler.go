package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orders-wallet-service/internal/response"
	"orders-wallet-service/internal/usecase"
)

func GetBalanceHandler(walletUC *usecase.WalletUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid customer id")
			return
		}

		balance, err := walletUC.GetBalance(r.Context(), customerID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, balance)
	}
}

func DepositHandler(walletUC *usecase.WalletUsecase, idemUC *usecase.IdempotencyUsecase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid customer id")
			return
		}

		var body struct {
			Amount      decimal.Decimal `json:"amount"`
			Description string          `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		request := map[string]string{
			"customerId": customerID.String(),
			"amount":     body.Amount.String(),
		}
		payload, err := idemUC.Execute(r.Context(),
			r.Header.Get(headerIdempotencyKey), r.Header.Get(headerActorID),
			usecase.OpDepositFunds, request,
			func(ctx context.Context) (any, error) {
				return walletUC.Deposit(ctx, customerID, body.Amount, body.Description)
			})
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, json.RawMessage(payload))
	}
}
