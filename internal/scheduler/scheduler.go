package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/repo"
)

const defaultBatchSize = 100

// ScheduleStore реализуется *repo.ScheduleRepo.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
}

// RunStore реализуется *repo.RunRepo.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error)
}

// WorkflowStore реализуется *repo.WorkflowRepo.
type WorkflowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
}

// RunPublisher реализуется *mq.Publisher.
type RunPublisher interface {
	PublishRunPending(ctx context.Context, runID uuid.UUID) error
}

// Scheduler создаёт runs по расписаниям сохранённых workflows.
type Scheduler struct {
	schedules ScheduleStore
	runs      RunStore
	workflows WorkflowStore
	publisher RunPublisher
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// Config это конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Runs      RunStore
	Workflows WorkflowStore

	// Publisher опционален: без него worker найдёт run через polling.
	Publisher RunPublisher

	Logger    *slog.Logger
	BatchSize int // schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		runs:      cfg.Runs,
		workflows: cfg.Workflows,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

// Tick обрабатывает все due schedules.
//
// Для каждого schedule создаётся run со снимком графа workflow
// (один на момент due), пересчитывается next_due_at и публикуется
// run.pending. Ошибка одного schedule не блокирует остальные.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	due, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(due))

	var processed, created int
	for i := range due {
		sched := &due[i]

		runCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}

		processed++
		if runCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(due),
		"processed", processed,
		"runs_created", created,
	)
	return nil
}

// processSchedule возвращает true, если run был создан, а не найден по ключу.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	wf, err := s.workflows.GetByID(ctx, sched.WorkflowID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("workflow not found for schedule, skipping",
				"schedule_id", sched.ID,
				"workflow_id", sched.WorkflowID,
			)
			return false, nil
		}
		return false, fmt.Errorf("get workflow: %w", err)
	}

	dueAt := now
	if sched.NextDueAt != nil {
		dueAt = *sched.NextDueAt
	}
	key := IdempotencyKey(sched.ID, dueAt)

	runID, runCreated, err := s.ensureRun(ctx, sched, wf, key, now)
	if err != nil {
		return false, err
	}

	nextDue, err := NextDue(sched, now)
	if err != nil {
		// next_due_at не трогаем: schedule будет выбран снова, run не задублируется.
		s.logger.Error("failed to calculate next due",
			"schedule_id", sched.ID,
			"error", err,
		)
		return runCreated, nil
	}

	sched.RecordRun(runID, now, nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return runCreated, fmt.Errorf("update schedule: %w", err)
	}

	if s.publisher != nil && runCreated {
		if err := s.publisher.PublishRunPending(ctx, runID); err != nil {
			s.logger.Warn("failed to publish run.pending",
				"run_id", runID,
				"error", err,
			)
		}
	}

	return runCreated, nil
}

func (s *Scheduler) ensureRun(ctx context.Context, sched *domain.Schedule, wf *domain.Workflow, key string, now time.Time) (uuid.UUID, bool, error) {
	existing, err := s.runs.GetByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		s.logger.Debug("run already exists (idempotency)",
			"schedule_id", sched.ID,
			"run_id", existing.ID,
			"idempotency_key", key,
		)
		return existing.ID, false, nil
	case !errors.Is(err, repo.ErrNotFound):
		return uuid.Nil, false, fmt.Errorf("check idempotency: %w", err)
	}

	run := &domain.Run{
		ID:             uuid.New(),
		WorkflowID:     &wf.ID,
		Status:         domain.RunStatusPending,
		Graph:          wf.Graph.Clone(),
		IdempotencyKey: key,
		CreatedAt:      now,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// Другой экземпляр успел раньше.
			existing, getErr := s.runs.GetByIdempotencyKey(ctx, key)
			if getErr != nil {
				return uuid.Nil, false, fmt.Errorf("get concurrent run: %w", getErr)
			}
			return existing.ID, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("create run: %w", err)
	}

	s.logger.Info("created run from schedule",
		"run_id", run.ID,
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"workflow_id", wf.ID,
	)
	return run.ID, true, nil
}
