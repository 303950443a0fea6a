package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ebookGen/internal/books"
	"ebookGen/internal/config"
	"ebookGen/internal/export"
	"ebookGen/internal/logging"
	"ebookGen/internal/metrics"
	"ebookGen/internal/storage"
	"ebookGen/internal/store"
	"ebookGen/internal/tasks"
	"ebookGen/internal/worker"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.NewText(os.Stdout, cfg.Log.Level)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// 内存存储只在 API 进程内可见，worker 无法读取
	if cfg.Database.Driver == config.DriverMemory {
		return errors.New("worker requires a shared database, memory driver is not supported")
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("store ready for worker", slog.String("driver", cfg.Database.Driver))

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init storage client: %w", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr, Password: cfg.Redis.Password})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	bookService := books.NewService(st, logger)
	renderer := export.NewRenderer(cfg.Export, logger)
	exportHandler := worker.NewExportTaskHandler(bookService, storageClient, renderer, redisClient, logger)

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr, Password: cfg.Redis.Password}, asynq.Config{
		Concurrency: cfg.Export.WorkerConcurrency,
		Logger:      &asynqLogger{logger: logger.With(slog.String("component", "asynq"))},
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeBookExport, exportHandler)

	if addr := cfg.Export.MetricsAddr; addr != "" {
		go serveMetrics(addr, logger)
	}

	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr),
		slog.Int("concurrency", cfg.Export.WorkerConcurrency),
		slog.String("pdf_engine", cfg.Export.PDFEngine),
	)
	return server.Run(mux)
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("worker metrics listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("worker metrics server stopped", slog.Any("error", err))
	}
}

// asynqLogger 把 asynq 的日志转到 slog。
type asynqLogger struct {
	logger *slog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
