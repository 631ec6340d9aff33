package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"orders-wallet-service/internal/config"
	"orders-wallet-service/internal/repository"
	"orders-wallet-service/internal/router"
	"orders-wallet-service/internal/usecase"
	"orders-wallet-service/internal/worker"
)

type Server struct {
	httpServer *http.Server
	db         *pgxpool.Pool
	worker     *worker.OutboxWorker
	publisher  *worker.KafkaPublisher
	logger     *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	db, err := config.ConnectDB(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	rdb := config.ConnectRedis(cfg)

	customerRepo := repository.NewCustomerRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	walletRepo := repository.NewWalletRepo(db)
	eventStore := repository.NewEventStoreRepo(db)
	outboxRepo := repository.NewOutboxRepo(db)
	idemRepo := repository.NewIdempotencyRepo(db)
	readModels := repository.NewReadModelRepo(db)
	txm := repository.NewTxManager(db)
	locks := repository.NewLockManager()

	notifier := usecase.NewNotifier(logger)
	walletUC := usecase.NewWalletUsecase(walletRepo, customerRepo, eventStore, outboxRepo, txm, locks, rdb, notifier, logger)
	orderUC := usecase.NewOrderUsecase(orderRepo, customerRepo, walletRepo, eventStore, outboxRepo, readModels, txm, locks, walletUC, logger)
	refundUC := usecase.NewRefundUsecase(orderRepo, walletRepo, eventStore, outboxRepo, txm, locks, walletUC, logger)
	idemUC := usecase.NewIdempotencyUsecase(idemRepo, logger)

	var publisher *worker.KafkaPublisher
	var projectorPublisher usecase.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = worker.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		projectorPublisher = publisher
	}
	projector := usecase.NewProjectorUsecase(outboxRepo, readModels, customerRepo, projectorPublisher, logger)
	outboxWorker := worker.NewOutboxWorker(projector, cfg.ProjectorInterval, cfg.ProjectorBatchSize, logger)

	r := router.New(orderUC, refundUC, walletUC, idemUC, notifier, logger)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		db:        db,
		worker:    outboxWorker,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// StartWorker runs the outbox projector loop until ctx is cancelled.
func (s *Server) StartWorker(ctx context.Context) {
	s.worker.Start(ctx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer s.db.Close()
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("failed to close kafka publisher", zap.Error(err))
		}
	}
	return s.httpServer.Shutdown(ctx)
}
