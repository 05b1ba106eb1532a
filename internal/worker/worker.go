package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/mq"
	"github.com/shaiso/Artflow/internal/orchestrator"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 2
)

// RunStore хранит runs. Реализуется *repo.RunRepo.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListPending(ctx context.Context, limit int) ([]domain.Run, error)
	Claim(ctx context.Context, run *domain.Run) error
	Finish(ctx context.Context, run *domain.Run) error
}

// OutputStore сохраняет статусы Output-узлов. Реализуется *repo.OutputRepo.
type OutputStore interface {
	Save(ctx context.Context, runID uuid.UUID, nodeID string, status domain.OutputStatus) error
}

// StatusCache кэширует статусы для live-стрима. Реализуется *storage.StatusStore.
type StatusCache interface {
	Save(ctx context.Context, runID uuid.UUID, nodeID string, status domain.OutputStatus) error
	PublishRunFinished(ctx context.Context, runID uuid.UUID, status domain.RunStatus) error
}

// EventPublisher публикует события run. Реализуется *mq.Publisher.
type EventPublisher interface {
	PublishOutputStatus(ctx context.Context, payload mq.OutputStatusPayload) error
	PublishRunFinished(ctx context.Context, payload mq.RunFinishedPayload) error
}

// Executor выполняет граф. Реализуется *orchestrator.Orchestrator.
type Executor interface {
	Execute(ctx context.Context, g domain.Graph, creds domain.Credentials, w orchestrator.StatusWriter) (*orchestrator.Report, error)
}

// Worker выполняет runs.
//
// Workers масштабируются горизонтально: Claim гарантирует, что один run
// выполняет ровно один экземпляр.
type Worker struct {
	runs      RunStore
	outputs   OutputStore
	cache     StatusCache
	publisher EventPublisher
	executor  Executor
	creds     domain.Credentials

	conn     *mq.Connection
	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config это конфигурация Worker.
type Config struct {
	Runs    RunStore
	Outputs OutputStore

	// Cache опционален; без него live-стрим не получает события.
	Cache StatusCache

	// Publisher опционален.
	Publisher EventPublisher

	// Conn опционален; без него работает только polling.
	Conn *mq.Connection

	Executor Executor

	// Credentials используются для всех runs.
	Credentials domain.Credentials

	PollInterval time.Duration // default: 10s
	BatchSize    int           // runs за один poll (default: 50)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		runs:         cfg.Runs,
		outputs:      cfg.Outputs,
		cache:        cfg.Cache,
		publisher:    cfg.Publisher,
		executor:     cfg.Executor,
		creds:        cfg.Credentials,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает consumer run.pending (если есть Conn) и polling.
func (w *Worker) Start(ctx context.Context) error {
	if w.executor == nil {
		return ErrNoExecutor
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    mq.QueueRunsPending,
			Handler:  w.handleRunPending,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения текущих runs.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Подхватываем runs, созданные пока воркер был выключен.
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	runs, err := w.runs.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	w.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		if ctx.Err() != nil {
			return
		}
		if err := w.processRun(ctx, runs[i].ID); err != nil && !errors.Is(err, ErrRunNotPending) {
			w.logger.Error("failed to process run from poll",
				"run_id", runs[i].ID,
				"error", err,
			)
		}
	}
}
