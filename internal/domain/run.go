package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run это одно выполнение снимка графа.
//
// Run создаётся когда:
// - пользователь запускает граф или сохранённый workflow через API/CLI
// - scheduler создаёт run по расписанию
//
// Граф копируется в run целиком, поэтому изменения workflow
// не влияют на уже созданные runs.
type Run struct {
	ID uuid.UUID `json:"id"`

	// WorkflowID заполнен, если run запущен из сохранённого workflow.
	WorkflowID *uuid.UUID `json:"workflow_id,omitempty"`

	Status RunStatus `json:"status"`

	// Graph это снимок графа на момент запуска.
	Graph Graph `json:"graph"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error содержит текст фатальной ошибки (например, нет Output-узлов).
	Error string `json:"error,omitempty"`

	// IdempotencyKey предотвращает дубликаты.
	// Для scheduled runs: "{schedule_id}_{due_unix}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkFinished переводит run в финальный статус.
func (r *Run) MarkFinished(status RunStatus, errMsg string) {
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
	r.Error = errMsg
}

// RunOutput это последний записанный статус Output-узла в рамках run.
type RunOutput struct {
	RunID     uuid.UUID    `json:"run_id"`
	NodeID    string       `json:"node_id"`
	Status    OutputStatus `json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
}
