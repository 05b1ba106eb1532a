package orchestrator

import (
	"time"

	"github.com/shaiso/Artflow/internal/domain"
)

// BranchResult это итог одной ветки.
type BranchResult struct {
	OutputNodeID string              `json:"output_node_id"`
	Model        string              `json:"model,omitempty"`
	Prompt       string              `json:"prompt,omitempty"`
	Status       domain.OutputStatus `json:"status"`
	Duration     time.Duration       `json:"duration"`

	// Err содержит исходную ошибку для errors.Is/As.
	Err error `json:"-"`
}

// Report содержит результаты всех веток в порядке Output-узлов графа.
type Report struct {
	Branches []BranchResult `json:"branches"`
}

// Succeeded возвращает число успешных веток.
func (r *Report) Succeeded() int {
	n := 0
	for _, b := range r.Branches {
		if b.Status.Status == domain.OutputStateSuccess {
			n++
		}
	}
	return n
}

// Failed возвращает число веток с ошибкой.
func (r *Report) Failed() int {
	n := 0
	for _, b := range r.Branches {
		if b.Status.Status == domain.OutputStateError {
			n++
		}
	}
	return n
}

// RunStatus выводит итоговый статус run.
func (r *Report) RunStatus() domain.RunStatus {
	return domain.RunStatusFromCounts(r.Succeeded(), r.Failed())
}
