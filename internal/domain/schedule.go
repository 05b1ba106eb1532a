package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule периодически запускает сохранённый workflow.
//
// Триггер задаётся cron-выражением ("0 9 * * *") или интервалом в секундах.
// Если задан CronExpr, IntervalSec игнорируется.
type Schedule struct {
	ID         uuid.UUID `json:"id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Name       string    `json:"name,omitempty"`

	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`

	// Timezone (IANA) для cron. Пустое или неизвестное значение означает UTC.
	Timezone string `json:"timezone"`

	Enabled bool `json:"enabled"`

	// NextDueAt: scheduler создаёт run, когда now >= NextDueAt.
	// Значение также входит в ключ идемпотентности run.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true, если триггер задан cron-выражением.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если триггер задан интервалом.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// RecordRun фиксирует запуск в момент at и сдвигает NextDueAt.
func (s *Schedule) RecordRun(runID uuid.UUID, at, nextDue time.Time) {
	s.LastRunAt = &at
	s.LastRunID = &runID
	s.NextDueAt = &nextDue
	s.UpdatedAt = at
}
