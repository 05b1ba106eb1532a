package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/engine"
	"github.com/shaiso/Artflow/internal/optimizer"
)

// openAIKeyHeader позволяет клиенту передать собственный ключ OpenAI.
const openAIKeyHeader = "X-OpenAI-Key"

// OptimizePrompt улучшает шаблон промпта через LLM.
// POST /api/v1/prompts/optimize
func (h *Handler) OptimizePrompt(w http.ResponseWriter, r *http.Request) {
	if h.optimizer == nil {
		Unavailable(w, "prompt optimizer is not configured")
		return
	}

	var req OptimizePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	promptContext := req.Context
	if promptContext == "" && len(req.Graph) > 0 {
		if req.PromptNodeID == "" {
			BadRequest(w, "prompt_node_id is required with graph")
			return
		}
		g, err := engine.ParseGraph(req.Graph)
		if err != nil {
			InvalidGraph(w, err)
			return
		}
		promptContext = optimizer.BuildContext(*g, req.PromptNodeID)
		if req.Template == "" {
			if n, ok := g.Node(req.PromptNodeID); ok {
				req.Template = n.Template
			}
		}
	}

	apiKey := r.Header.Get(openAIKeyHeader)
	if apiKey == "" {
		apiKey = h.creds.OpenAI
	}

	result, err := h.optimizer.Optimize(r.Context(), optimizer.OptimizeRequest{
		Context:  promptContext,
		Template: req.Template,
		APIKey:   apiKey,
	})
	if err != nil {
		var credErr *backend.MissingCredentialError
		switch {
		case errors.As(err, &credErr):
			BadRequest(w, err.Error())
		case errors.Is(err, optimizer.ErrOptimizationFailed):
			h.logger.Warn("prompt optimization failed", "error", err)
			BadGateway(w, err.Error())
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	Success(w, OptimizePromptResponse{Template: result})
}

// ListModels возвращает известные модели и их ограничения.
// GET /api/v1/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	models := h.registry.Models()

	result := make([]ModelResponse, len(models))
	for i, d := range models {
		result[i] = ModelFromDescriptor(d)
	}

	List(w, result, len(result))
}
