// Artflow API: HTTP API для workflows, runs, schedules и стрима статусов.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Artflow/internal/api"
	"github.com/shaiso/Artflow/internal/config"
	"github.com/shaiso/Artflow/internal/mq"
	"github.com/shaiso/Artflow/internal/optimizer"
	"github.com/shaiso/Artflow/internal/repo"
	"github.com/shaiso/Artflow/internal/storage"
	"github.com/shaiso/Artflow/internal/telemetry"
	"github.com/shaiso/Artflow/migrations"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting artflow-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.Pool())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if cfg.DBMigrate {
		applied, err := repo.Migrate(ctx, pool, migrations.FS)
		if err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "files", applied)
	}

	apiCfg := api.Config{
		Workflows:   repo.NewWorkflowRepo(pool),
		Runs:        repo.NewRunRepo(pool),
		Outputs:     repo.NewOutputRepo(pool),
		Schedules:   repo.NewScheduleRepo(pool),
		Credentials: cfg.Credentials(),
		Optimizer: optimizer.New(optimizer.Config{
			Model:   cfg.OptimizerModel,
			BaseURL: cfg.OptimizerBaseURL,
			Logger:  logger,
		}),
		Logger: logger,
	}

	// RabbitMQ: без него runs подхватываются воркером через polling
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, runs will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		apiCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	// Redis: без него стрим статусов недоступен
	rdb, err := storage.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis not available, run streaming disabled", "error", err)
	} else {
		defer rdb.Close()
		apiCfg.Feed = storage.NewStatusStore(rdb, storage.DefaultTTL, logger)
	}

	handler := api.NewHandler(apiCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := config.Addr(cfg.APIPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
