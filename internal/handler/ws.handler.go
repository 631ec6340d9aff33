package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"orders-wallet-service/internal/response"
	"orders-wallet-service/internal/usecase"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WalletWSHandler streams balance updates for one customer. The connection
// gets the current balance on subscribe and after every wallet movement; a
// client can also request a refresh with {"action":"get_balance"}.
func WalletWSHandler(walletUC *usecase.WalletUsecase, notifier *usecase.Notifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid customer id")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "WebSocket upgrade failed")
			return
		}

		notifier.RegisterConnection(customerID.String(), conn)
		defer notifier.UnregisterConnection(customerID.String(), conn)

		ctx := r.Context()
		if balance, err := walletUC.GetBalance(ctx, customerID); err == nil {
			notifier.NotifyBalance(customerID.String(), balance.Balance)
		} else {
			logger.Warn("failed to load initial balance",
				zap.String("customer_id", customerID.String()), zap.Error(err))
		}

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Info("websocket client disconnected",
					zap.String("customer_id", customerID.String()), zap.Error(err))
				break
			}

			if mt == websocket.TextMessage {
				var req struct {
					Action string `json:"action"`
				}
				if err := json.Unmarshal(msg, &req); err == nil && req.Action == "get_balance" {
					if balance, err := walletUC.GetBalance(ctx, customerID); err == nil {
						notifier.NotifyBalance(customerID.String(), balance.Balance)
					}
				}
			}
		}
	}
}
