package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Artflow/internal/domain"
)

const workflowColumns = `id, name, description, graph, created_at, updated_at`

// WorkflowRepo хранит сохранённые графы.
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт новый WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

// Create создаёт workflow. Имя должно быть уникальным.
func (r *WorkflowRepo) Create(ctx context.Context, wf *domain.Workflow) error {
	graphJSON, err := marshalGraph(wf.Graph)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO workflows (id, name, description, graph, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, wf.ID, wf.Name, nullString(wf.Description), graphJSON, wf.CreatedAt, wf.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// GetByID возвращает workflow по ID.
func (r *WorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)
	return scanWorkflow(row)
}

// List возвращает workflows, новые первыми.
func (r *WorkflowRepo) List(ctx context.Context, page Page) ([]domain.Workflow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return workflows, rows.Err()
}

// Update обновляет имя, описание и граф.
func (r *WorkflowRepo) Update(ctx context.Context, wf *domain.Workflow) error {
	graphJSON, err := marshalGraph(wf.Graph)
	if err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE workflows
		SET name = $2, description = $3, graph = $4, updated_at = $5
		WHERE id = $1
	`, wf.ID, wf.Name, nullString(wf.Description), graphJSON, wf.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет workflow. Runs сохраняются: у них свой снимок графа.
func (r *WorkflowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var wf domain.Workflow
	var description *string
	var graphJSON []byte

	err := row.Scan(&wf.ID, &wf.Name, &description, &graphJSON, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workflow: %w", err)
	}

	wf.Description = derefString(description)
	if err := unmarshalGraph(graphJSON, &wf.Graph); err != nil {
		return nil, err
	}
	return &wf, nil
}
