// Artflow Scheduler: создаёт runs по расписаниям.
//
// Тики выполняет только лидер: экземпляр, удерживающий advisory lock в PostgreSQL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Artflow/internal/config"
	"github.com/shaiso/Artflow/internal/mq"
	"github.com/shaiso/Artflow/internal/repo"
	"github.com/shaiso/Artflow/internal/scheduler"
	"github.com/shaiso/Artflow/internal/telemetry"
)

const schedLockKey int64 = 424242

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting artflow-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx, cfg.Pool())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	schedCfg := scheduler.Config{
		Schedules: repo.NewScheduleRepo(pool),
		Runs:      repo.NewRunRepo(pool),
		Workflows: repo.NewWorkflowRepo(pool),
		Logger:    logger,
	}

	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, workers will poll for runs", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		schedCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	sched := scheduler.New(schedCfg)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go runLoop(ctx, pool, sched, logger)

	addr := config.Addr(cfg.SchedulerPort)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("artflow-scheduler stopped")
}

// runLoop раз в секунду пытается стать лидером и, если удалось, выполняет тик.
func runLoop(ctx context.Context, pool *pgxpool.Pool, sched *scheduler.Scheduler, logger *slog.Logger) {
	tk := time.NewTicker(1 * time.Second)
	defer tk.Stop()

	// advisory lock привязан к сессии, поэтому держим одно соединение
	conn, err := pool.Acquire(ctx)
	if err != nil {
		logger.Error("acquire connection", "error", err)
		return
	}
	defer conn.Release()

	var hasLock bool
	defer func() {
		if hasLock {
			_, _ = conn.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
		}
	}()

	for {
		select {
		case <-tk.C:
			if !hasLock {
				var ok bool
				if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
					logger.Error("lock error", "error", err)
					continue
				}
				if ok {
					logger.Info("became leader")
				}
				hasLock = ok
			}

			// не лидер, пропускаем тик
			if !hasLock {
				continue
			}

			if err := sched.Tick(ctx); err != nil {
				logger.Error("tick failed", "error", err)
			}

		case <-ctx.Done():
			return
		}
	}
}
