package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/mq"
	"github.com/shaiso/Artflow/internal/orchestrator"
	"github.com/shaiso/Artflow/internal/repo"
	"github.com/shaiso/Artflow/internal/telemetry"
)

// finalizeTimeout ограничивает запись итогов run после отмены контекста воркера.
const finalizeTimeout = 10 * time.Second

// detach отвязывает ctx от отмены родителя, сохраняя его значения (логгер).
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

// handleRunPending обрабатывает событие run.pending.
func (w *Worker) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse run.pending payload", "error", err)
		return err
	}

	w.logger.Debug("received run.pending event", "run_id", payload.RunID)

	if err := w.processRun(ctx, payload.RunID); err != nil {
		// Run уже выполнен или удалён: ack.
		if errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrRunNotPending) {
			w.logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process run", "run_id", payload.RunID, "error", err)
		return err
	}
	return nil
}

// processRun берёт run в работу, выполняет граф и сохраняет итог.
func (w *Worker) processRun(ctx context.Context, runID uuid.UUID) error {
	run, err := w.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}

	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}
	if err := w.runs.Claim(ctx, run); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return ErrRunNotPending
		}
		return fmt.Errorf("claim run: %w", err)
	}

	logger := telemetry.WithRunID(w.logger, run.ID.String())
	if run.WorkflowID != nil {
		logger = telemetry.WithWorkflowID(logger, run.WorkflowID.String())
	}
	ctx = telemetry.WithLogger(ctx, logger)

	logger.Info("run started", "nodes", len(run.Graph.Nodes))

	report, execErr := w.executor.Execute(ctx, run.Graph, w.creds, w.statusWriter(run.ID, logger))
	if execErr != nil {
		run.MarkFinished(domain.RunStatusFailed, execErr.Error())
	} else {
		run.MarkFinished(report.RunStatus(), "")
	}

	// Stop отменяет ctx во время Execute: итог всё равно должен попасть в БД,
	// иначе run останется в RUNNING.
	fctx, cancel := detach(ctx)
	defer cancel()

	if err := w.runs.Finish(fctx, run); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	telemetry.ObserveRun(string(run.Status))

	logger.Info("run finished",
		"status", run.Status,
		"duration", run.Duration(),
		"error", run.Error,
	)

	w.publishFinished(fctx, run, logger)
	return nil
}

// statusWriter сохраняет каждый статус узла в БД, кэш и очередь.
// Терминальные статусы пишутся на отвязанном контексте.
func (w *Worker) statusWriter(runID uuid.UUID, logger *slog.Logger) orchestrator.StatusWriter {
	return orchestrator.StatusWriterFunc(func(ctx context.Context, nodeID string, status domain.OutputStatus) error {
		if status.Status.IsTerminal() {
			var cancel context.CancelFunc
			ctx, cancel = detach(ctx)
			defer cancel()
		}

		var errs []error

		if w.outputs != nil {
			if err := w.outputs.Save(ctx, runID, nodeID, status); err != nil {
				errs = append(errs, fmt.Errorf("save output: %w", err))
			}
		}
		if w.cache != nil {
			if err := w.cache.Save(ctx, runID, nodeID, status); err != nil {
				errs = append(errs, fmt.Errorf("cache output: %w", err))
			}
		}
		if w.publisher != nil {
			payload := mq.OutputStatusPayload{RunID: runID, NodeID: nodeID, Status: status}
			if err := w.publisher.PublishOutputStatus(ctx, payload); err != nil {
				logger.Warn("failed to publish output.status", "node_id", nodeID, "error", err)
			}
		}

		return errors.Join(errs...)
	})
}

func (w *Worker) publishFinished(ctx context.Context, run *domain.Run, logger *slog.Logger) {
	if w.cache != nil {
		if err := w.cache.PublishRunFinished(ctx, run.ID, run.Status); err != nil {
			logger.Warn("failed to publish run finished to cache", "error", err)
		}
	}
	if w.publisher != nil {
		payload := mq.RunFinishedPayload{RunID: run.ID, Status: run.Status, Error: run.Error}
		if err := w.publisher.PublishRunFinished(ctx, payload); err != nil {
			logger.Warn("failed to publish run.finished", "error", err)
		}
	}
}
