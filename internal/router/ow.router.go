package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"orders-wallet-service/internal/handler"
	"orders-wallet-service/internal/usecase"
)

func New(
	orderUC *usecase.OrderUsecase,
	refundUC *usecase.RefundUsecase,
	walletUC *usecase.WalletUsecase,
	idemUC *usecase.IdempotencyUsecase,
	notifier *usecase.Notifier,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/customers", handler.CreateCustomerHandler(orderUC))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", handler.CreateOrderHandler(orderUC, idemUC))
			r.Get("/{orderID}", handler.GetOrderHandler(orderUC))
			r.Post("/{orderID}/capture", handler.CapturePaymentHandler(orderUC, idemUC))
			r.Post("/{orderID}/refund", handler.RefundOrderHandler(refundUC, idemUC))
			r.Post("/{orderID}/cancel", handler.CancelOrderHandler(orderUC))
		})

		r.Get("/customers/{customerID}/orders", handler.ListOrdersHandler(orderUC))
		r.Get("/customers/{customerID}/balance", handler.GetBalanceHandler(walletUC))
		r.Post("/wallets/{customerID}/deposit", handler.DepositHandler(walletUC, idemUC))

		r.Get("/ws/wallet/{customerID}", handler.WalletWSHandler(walletUC, notifier, logger))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
