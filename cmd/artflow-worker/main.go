// Artflow Worker: выполняет runs.
//
// Worker:
//   - Получает run.pending из RabbitMQ и периодически опрашивает БД
//   - Выполняет ветки графа через бэкенды изображений
//   - Пишет статусы Output-узлов в PostgreSQL и Redis
//   - Публикует output.status и run.finished
//
// Workers масштабируются горизонтально: run забирает тот, кто первым его захватил.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/config"
	"github.com/shaiso/Artflow/internal/mq"
	"github.com/shaiso/Artflow/internal/orchestrator"
	"github.com/shaiso/Artflow/internal/repo"
	"github.com/shaiso/Artflow/internal/storage"
	"github.com/shaiso/Artflow/internal/telemetry"
	"github.com/shaiso/Artflow/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting artflow-worker", "parallelism", cfg.BranchParallelism)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx, cfg.Pool())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	orch := orchestrator.New(orchestrator.Config{
		Dispatcher:  backend.New(backend.Config{Logger: logger}),
		Parallelism: cfg.BranchParallelism,
		Logger:      logger,
	})

	workerCfg := worker.Config{
		Runs:         repo.NewRunRepo(pool),
		Outputs:      repo.NewOutputRepo(pool),
		Executor:     orch,
		Credentials:  cfg.Credentials(),
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	}

	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		} else {
			logger.Debug("topology ready", "topology", mq.TopologyInfo())
		}
		workerCfg.Conn = mqConn
		workerCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	rdb, err := storage.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis not available, live statuses disabled", "error", err)
	} else {
		defer rdb.Close()
		workerCfg.Cache = storage.NewStatusStore(rdb, storage.DefaultTTL, logger)
	}

	w := worker.New(workerCfg)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		// соединение с RabbitMQ потеряно и ещё не восстановлено
		if workerCfg.Conn != nil && !workerCfg.Conn.IsConnected() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte("rabbitmq disconnected"))
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := config.Addr(cfg.WorkerPort)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("artflow-worker stopped")
}
