package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"orders-wallet-service/internal/config"
	"orders-wallet-service/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Orders-wallet: No .env file found, relying on system env vars")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	go srv.StartWorker(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("orders-wallet service starting", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down gracefully")
		stopWorker()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		stopWorker()
		logger.Fatal("server exited", zap.Error(err))
	}
}
