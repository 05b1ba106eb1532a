package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Artflow/internal/domain"
)

const runColumns = `id, workflow_id, status, graph, started_at, finished_at,
	error, idempotency_key, created_at`

// RunRepo хранит runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт run вместе со снимком графа.
// Повторный ключ идемпотентности возвращает ErrAlreadyExists.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	graphJSON, err := marshalGraph(run.Graph)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO runs (id, workflow_id, status, graph, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, nullUUID(run.WorkflowID), run.Status, graphJSON, nullString(run.IdempotencyKey), run.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
}

// GetByIdempotencyKey возвращает run по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error) {
	return scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE idempotency_key = $1`, key))
}

// RunFilter задаёт фильтрацию runs.
type RunFilter struct {
	WorkflowID *uuid.UUID
	Status     domain.RunStatus
	Page
}

// List возвращает runs по фильтру, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE ($1::uuid IS NULL OR workflow_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, nullUUID(filter.WorkflowID), nullString(string(filter.Status)), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return collectRuns(rows)
}

// ListPending возвращает самые старые PENDING runs.
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	return collectRuns(rows)
}

// Claim атомарно переводит run из PENDING в RUNNING.
// Если run уже взят другим воркером, возвращает ErrInvalidState.
func (r *RunRepo) Claim(ctx context.Context, run *domain.Run) error {
	now := time.Now()
	result, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = 'RUNNING', started_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`, run.ID, now)
	if err != nil {
		return fmt.Errorf("claim run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	run.Status = domain.RunStatusRunning
	run.StartedAt = &now
	return nil
}

// Finish сохраняет финальный статус run.
func (r *RunRepo) Finish(ctx context.Context, run *domain.Run) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = $2, finished_at = $3, error = $4
		WHERE id = $1
	`, run.ID, run.Status, run.FinishedAt, nullString(run.Error))
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectRuns(rows pgx.Rows) ([]domain.Run, error) {
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var graphJSON []byte
	var runError, idempotencyKey *string

	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&run.Status,
		&graphJSON,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
		&idempotencyKey,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Error = derefString(runError)
	run.IdempotencyKey = derefString(idempotencyKey)
	if err := unmarshalGraph(graphJSON, &run.Graph); err != nil {
		return nil, err
	}
	return &run, nil
}
