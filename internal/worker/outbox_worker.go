package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"orders-wallet-service/internal/usecase"
)

// OutboxWorker drives the projector on a timer. It never blocks the command
// path and is cancellable between batches, not mid-batch.
type OutboxWorker struct {
	projector *usecase.ProjectorUsecase
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewOutboxWorker(projector *usecase.ProjectorUsecase, interval time.Duration, batchSize int, logger *zap.Logger) *OutboxWorker {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxWorker{
		projector: projector,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("outbox worker started",
		zap.Duration("interval", w.interval), zap.Int("batch_size", w.batchSize))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopped")
			return
		case <-ticker.C:
			processed, err := w.projector.Drain(ctx, w.batchSize)
			if err != nil {
				w.logger.Error("outbox drain failed", zap.Error(err))
				continue
			}
			if processed > 0 {
				w.logger.Info("outbox batch drained", zap.Int("processed", processed))
			}
		}
	}
}
