// Package optimizer переписывает шаблон промпта с помощью chat-модели.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/engine"
)

// DefaultModel используется, если модель не задана.
const DefaultModel = "gpt-4o"

// ErrOptimizationFailed оборачивает ошибки chat-модели.
var ErrOptimizationFailed = errors.New("optimization failed")

const systemPrompt = `You are an expert prompt engineer for AI image generation models. ` +
	`Rewrite the user's draft into a vivid, specific visual description covering subject, ` +
	`setting, lighting, composition and style. Keep it under 50 words. ` +
	`Return only the prompt text without quotes or commentary.`

const userPrompt = `Context Variables:
{context}

Current Draft/Template:
"{template}"

Task: Create a better, more vivid image generation prompt based on the draft and the context. ` +
	`If the draft contains placeholders in double curly braces, keep them exactly as written ` +
	`so they can be filled in later.`

// ChatModel это часть eino BaseChatModel, которую использует Optimizer.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ModelFactory создаёт chat-модель для ключа.
type ModelFactory func(ctx context.Context, apiKey string) (ChatModel, error)

// Config содержит настройки Optimizer.
type Config struct {
	Model   string // default: gpt-4o
	BaseURL string

	// NewModel переопределяет создание chat-модели. По умолчанию eino-ext OpenAI.
	NewModel ModelFactory

	Logger *slog.Logger
}

// Optimizer улучшает шаблоны промптов.
type Optimizer struct {
	newModel ModelFactory
	template prompt.ChatTemplate
	model    string
	logger   *slog.Logger
}

// New создаёт Optimizer.
func New(cfg Config) *Optimizer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewModel == nil {
		modelName, baseURL := cfg.Model, cfg.BaseURL
		cfg.NewModel = func(ctx context.Context, apiKey string) (ChatModel, error) {
			return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
				APIKey:  apiKey,
				Model:   modelName,
				BaseURL: baseURL,
			})
		}
	}

	return &Optimizer{
		newModel: cfg.NewModel,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(userPrompt),
		),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// OptimizeRequest описывает запрос на улучшение шаблона.
type OptimizeRequest struct {
	// Context содержит строки "Label: value" из подключённых Input-узлов.
	Context  string `json:"context"`
	Template string `json:"template"`

	// APIKey это ключ семейства OpenAI.
	APIKey string `json:"-"`
}

// Optimize возвращает улучшенный шаблон.
//
// Пустой ответ модели возвращает исходный шаблон. Без ключа возвращается
// *backend.MissingCredentialError.
func (o *Optimizer) Optimize(ctx context.Context, req OptimizeRequest) (string, error) {
	if req.APIKey == "" {
		return "", &backend.MissingCredentialError{Family: backend.FamilyOpenAI}
	}

	messages, err := o.template.Format(ctx, map[string]any{
		"context":  req.Context,
		"template": req.Template,
	})
	if err != nil {
		return "", fmt.Errorf("%w: format prompt: %v", ErrOptimizationFailed, err)
	}

	cm, err := o.newModel(ctx, req.APIKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOptimizationFailed, err)
	}

	o.logger.DebugContext(ctx, "optimizing prompt", "model", o.model, "template_length", len(req.Template))

	reply, err := cm.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOptimizationFailed, err)
	}

	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return req.Template, nil
	}
	return strings.TrimSpace(reply.Content), nil
}

// BuildContext собирает текст контекста из Input-узлов, подключённых к Prompt-узлу.
// Учитываются только текстовые атрибуты с непустой меткой.
func BuildContext(g domain.Graph, promptNodeID string) string {
	var lines []string
	for _, input := range engine.InputsOf(g, promptNodeID) {
		for _, attr := range input.Attributes {
			label := strings.TrimSpace(attr.Label)
			if attr.Kind != domain.AttributeKindText || label == "" {
				continue
			}
			lines = append(lines, label+": "+attr.Value)
		}
	}
	return strings.Join(lines, "\n")
}
