package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"ebookGen/internal/api"
	"ebookGen/internal/auth"
	"ebookGen/internal/books"
	"ebookGen/internal/config"
	"ebookGen/internal/logging"
	"ebookGen/internal/storage"
	"ebookGen/internal/store"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.NewJSON(cfg.Log.Level)

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("store ready", slog.String("driver", cfg.Database.Driver))

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init storage client: %w", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password})
	defer asynqClient.Close()

	authService, err := auth.NewAuthServiceFromConfig(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}

	bookService := books.NewService(st, logger, books.WithObjectRemover(storageClient))

	var scanner api.VirusScanner
	if s := api.NewClamdScanner(cfg.Upload.ClamdAddr); s != nil {
		scanner = s
		logger.Info("upload virus scanning enabled", slog.String("clamd_addr", cfg.Upload.ClamdAddr))
	}

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Dependencies{
		Config:  cfg,
		Store:   st,
		Books:   bookService,
		Auth:    authService,
		Redis:   redisClient,
		Queue:   asynqClient,
		Storage: storageClient,
		Scanner: scanner,
		Logger:  logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           api.WithCORS(router, cfg.API),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
