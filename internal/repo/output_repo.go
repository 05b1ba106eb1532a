package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Artflow/internal/domain"
)

// OutputRepo хранит последний статус каждого Output-узла run.
type OutputRepo struct {
	pool *pgxpool.Pool
}

// NewOutputRepo создаёт новый OutputRepo.
func NewOutputRepo(pool *pgxpool.Pool) *OutputRepo {
	return &OutputRepo{pool: pool}
}

// Save заменяет статус узла целиком.
func (r *OutputRepo) Save(ctx context.Context, runID uuid.UUID, nodeID string, status domain.OutputStatus) error {
	images, err := json.Marshal(status.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO run_outputs (run_id, node_id, status, images, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, node_id)
		DO UPDATE SET status = EXCLUDED.status, images = EXCLUDED.images,
		              error = EXCLUDED.error, updated_at = EXCLUDED.updated_at
	`, runID, nodeID, status.Status, images, nullString(status.Error), time.Now())
	if err != nil {
		return fmt.Errorf("save run output: %w", err)
	}
	return nil
}

// ListByRun возвращает статусы выходов run.
func (r *OutputRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunOutput, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, node_id, status, images, error, updated_at
		FROM run_outputs
		WHERE run_id = $1
		ORDER BY node_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run outputs: %w", err)
	}
	defer rows.Close()

	var outputs []domain.RunOutput
	for rows.Next() {
		var out domain.RunOutput
		var images []byte
		var errMsg *string

		if err := rows.Scan(&out.RunID, &out.NodeID, &out.Status.Status, &images, &errMsg, &out.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run output: %w", err)
		}
		out.Status.Error = derefString(errMsg)
		out.Status.Images = []string{}
		if images != nil {
			if err := json.Unmarshal(images, &out.Status.Images); err != nil {
				return nil, fmt.Errorf("unmarshal images: %w", err)
			}
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}
