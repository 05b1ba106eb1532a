package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/domain"
)

// Workflow DTOs

// CreateWorkflowRequest это запрос на создание workflow.
// Graph принимается как JSON-объект и проходит engine.ParseAndValidate.
type CreateWorkflowRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Graph       json.RawMessage `json:"graph"`
}

// UpdateWorkflowRequest это запрос на обновление workflow.
type UpdateWorkflowRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Graph       json.RawMessage `json:"graph,omitempty"`
}

// WorkflowResponse это ответ с workflow.
type WorkflowResponse struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Graph       domain.Graph `json:"graph"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// WorkflowFromDomain конвертирует domain.Workflow в WorkflowResponse.
func WorkflowFromDomain(wf domain.Workflow) WorkflowResponse {
	return WorkflowResponse{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Graph:       wf.Graph,
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
	}
}

// Run DTOs

// CreateRunRequest это запрос на создание run.
// Нужно ровно одно из: Graph или WorkflowID.
type CreateRunRequest struct {
	Graph          json.RawMessage `json:"graph,omitempty"`
	WorkflowID     *uuid.UUID      `json:"workflow_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// RunResponse это ответ с run.
type RunResponse struct {
	ID             uuid.UUID     `json:"id"`
	WorkflowID     *uuid.UUID    `json:"workflow_id,omitempty"`
	Status         string        `json:"status"`
	Graph          *domain.Graph `json:"graph,omitempty"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Error          string        `json:"error,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`

	Outputs []OutputResponse `json:"outputs,omitempty"`
}

// RunFromDomain конвертирует domain.Run в RunResponse без графа.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		WorkflowID:     r.WorkflowID,
		Status:         string(r.Status),
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

// RunDetailFromDomain добавляет граф и статусы Output-узлов.
func RunDetailFromDomain(r domain.Run, outputs []domain.RunOutput) RunResponse {
	resp := RunFromDomain(r)
	g := r.Graph
	resp.Graph = &g
	resp.Outputs = OutputsFromDomain(outputs)
	return resp
}

// OutputResponse это статус Output-узла в run.
type OutputResponse struct {
	NodeID    string    `json:"node_id"`
	Status    string    `json:"status"`
	Images    []string  `json:"images"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OutputsFromDomain конвертирует статусы Output-узлов.
func OutputsFromDomain(outputs []domain.RunOutput) []OutputResponse {
	result := make([]OutputResponse, len(outputs))
	for i, o := range outputs {
		images := o.Status.Images
		if images == nil {
			images = []string{}
		}
		result[i] = OutputResponse{
			NodeID:    o.NodeID,
			Status:    string(o.Status.Status),
			Images:    images,
			Error:     o.Status.Error,
			UpdatedAt: o.UpdatedAt,
		}
	}
	return result
}

// Schedule DTOs

// CreateScheduleRequest это запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string `json:"name"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// UpdateScheduleRequest это запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// SetEnabledRequest это запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse это ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID  `json:"id"`
	WorkflowID  uuid.UUID  `json:"workflow_id"`
	Name        string     `json:"name"`
	CronExpr    string     `json:"cron_expr,omitempty"`
	IntervalSec int        `json:"interval_sec,omitempty"`
	Timezone    string     `json:"timezone"`
	Enabled     bool       `json:"enabled"`
	NextDueAt   *time.Time `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID `json:"last_run_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		WorkflowID:  s.WorkflowID,
		Name:        s.Name,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// Prompt DTOs

// OptimizePromptRequest это запрос на улучшение шаблона.
//
// Context можно передать готовым текстом или собрать из Graph
// по PromptNodeID (строки "Label: value" подключённых Input-узлов).
type OptimizePromptRequest struct {
	Template     string          `json:"template"`
	Context      string          `json:"context,omitempty"`
	Graph        json.RawMessage `json:"graph,omitempty"`
	PromptNodeID string          `json:"prompt_node_id,omitempty"`
}

// OptimizePromptResponse это ответ с улучшенным шаблоном.
type OptimizePromptResponse struct {
	Template string `json:"template"`
}

// ModelResponse описывает поддерживаемую модель.
type ModelResponse struct {
	Model        string `json:"model"`
	Family       string `json:"family"`
	PerCallLimit int    `json:"per_call_limit"`
	FixedPerCall bool   `json:"fixed_per_call"`
	ImageInput   string `json:"image_input"`
}

// ModelFromDescriptor конвертирует backend.Descriptor в ModelResponse.
func ModelFromDescriptor(d backend.Descriptor) ModelResponse {
	return ModelResponse{
		Model:        d.Model,
		Family:       string(d.Family),
		PerCallLimit: d.Capabilities.PerCallLimit,
		FixedPerCall: d.Capabilities.FixedPerCall,
		ImageInput:   d.Capabilities.ImageInput.String(),
	}
}
