package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/engine"
	"github.com/shaiso/Artflow/internal/repo"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?workflow_id=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	filter := repo.RunFilter{Page: page}

	if s := r.URL.Query().Get("workflow_id"); s != "" {
		workflowID, err := uuid.Parse(s)
		if err != nil {
			BadRequest(w, "invalid workflow_id")
			return
		}
		filter.WorkflowID = &workflowID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.RunStatus(status)
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun запускает граф: переданный целиком или сохранённый workflow.
// POST /api/v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	hasGraph := len(req.Graph) > 0
	switch {
	case hasGraph && req.WorkflowID != nil:
		BadRequest(w, "graph and workflow_id are mutually exclusive")
		return
	case !hasGraph && req.WorkflowID == nil:
		BadRequest(w, "either graph or workflow_id is required")
		return
	}

	if req.WorkflowID != nil {
		h.startWorkflowRun(w, r, *req.WorkflowID, req.IdempotencyKey)
		return
	}

	g, err := engine.ParseAndValidate(req.Graph)
	if err != nil {
		InvalidGraph(w, err)
		return
	}

	h.startRun(w, r, &domain.Run{
		ID:             uuid.New(),
		Status:         domain.RunStatusPending,
		Graph:          *g,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// CreateWorkflowRun запускает сохранённый workflow.
// POST /api/v1/workflows/{id}/runs
func (h *Handler) CreateWorkflowRun(w http.ResponseWriter, r *http.Request) {
	workflowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	// Тело опционально.
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	h.startWorkflowRun(w, r, workflowID, req.IdempotencyKey)
}

func (h *Handler) startWorkflowRun(w http.ResponseWriter, r *http.Request, workflowID uuid.UUID, idempKey string) {
	wf, err := h.workflows.GetByID(r.Context(), workflowID)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	h.startRun(w, r, &domain.Run{
		ID:             uuid.New(),
		WorkflowID:     &wf.ID,
		Status:         domain.RunStatusPending,
		Graph:          wf.Graph.Clone(),
		IdempotencyKey: idempKey,
	})
}

// startRun сохраняет PENDING run и публикует run.pending.
// Повторный ключ идемпотентности возвращает существующий run с кодом 200.
func (h *Handler) startRun(w http.ResponseWriter, r *http.Request, run *domain.Run) {
	ctx := r.Context()

	if run.IdempotencyKey != "" {
		existing, err := h.runs.GetByIdempotencyKey(ctx, run.IdempotencyKey)
		if err == nil {
			Success(w, RunFromDomain(*existing))
			return
		}
		if !errors.Is(err, repo.ErrNotFound) {
			InternalError(w, h.logger, err)
			return
		}
	}

	run.CreatedAt = time.Now().UTC()
	if err := h.runs.Create(ctx, run); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) && run.IdempotencyKey != "" {
			existing, getErr := h.runs.GetByIdempotencyKey(ctx, run.IdempotencyKey)
			if getErr == nil {
				Success(w, RunFromDomain(*existing))
				return
			}
		}
		HandleRepoError(w, h.logger, err, "")
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishRunPending(ctx, run.ID); err != nil {
			// Worker подхватит run через polling.
			h.logger.Warn("failed to publish run.pending", "run_id", run.ID, "error", err)
		}
	}

	h.logger.Info("run created", "run_id", run.ID, "outputs", len(run.Graph.OutputNodes()))
	Created(w, RunFromDomain(*run))
}

// GetRun возвращает run с графом и статусами Output-узлов.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	outputs, err := h.outputs.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, RunDetailFromDomain(*run, outputs))
}

// ListRunOutputs возвращает статусы Output-узлов run.
// GET /api/v1/runs/{id}/outputs
func (h *Handler) ListRunOutputs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	if _, err := h.runs.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	outputs, err := h.outputs.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := OutputsFromDomain(outputs)
	List(w, result, len(result))
}
