package backend

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shaiso/Artflow/internal/domain"
)

// Request описывает одну генерацию для ветки.
type Request struct {
	Model  string
	Prompt string

	// Images содержит ссылки на входные изображения в порядке обнаружения.
	// Используется только первое.
	Images []string

	// N это количество изображений, уже приведённое к [1, 4].
	N int
}

// Config содержит зависимости Dispatcher.
type Config struct {
	Registry *Registry

	// NewGemini создаёт клиент Gemini для ключа. По умолчанию NewGeminiClient.
	NewGemini GeminiFactory

	// NewOpenAI создаёт клиент изображений OpenAI для ключа. По умолчанию NewOpenAIImages.
	NewOpenAI OpenAIFactory

	// BaseURLs переопределяют адреса API семейств (для прокси и тестов).
	GeminiBaseURL string
	OpenAIBaseURL string

	// HTTPClient используется для загрузки входных изображений по URL.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Dispatcher направляет запрос в нужное семейство бэкендов.
type Dispatcher struct {
	registry  *Registry
	newGemini GeminiFactory
	newOpenAI OpenAIFactory
	geminiURL string
	openaiURL string
	images    *ImageLoader
	logger    *slog.Logger
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry()
	}
	if cfg.NewGemini == nil {
		cfg.NewGemini = NewGeminiClient
	}
	if cfg.NewOpenAI == nil {
		cfg.NewOpenAI = NewOpenAIImages
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Dispatcher{
		registry:  cfg.Registry,
		newGemini: cfg.NewGemini,
		newOpenAI: cfg.NewOpenAI,
		geminiURL: cfg.GeminiBaseURL,
		openaiURL: cfg.OpenAIBaseURL,
		images:    NewImageLoader(cfg.HTTPClient),
		logger:    cfg.Logger,
	}
}

// Registry возвращает реестр моделей.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch выполняет генерацию и возвращает ссылки на изображения
// (data URI или URL).
//
// Ключ семейства проверяется до любого сетевого вызова. Ошибка любого
// вызова при fan-out отбрасывает уже полученные изображения.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, creds domain.Credentials) ([]string, error) {
	desc, err := d.registry.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	key := desc.Family.Credential(creds)
	if key == "" {
		return nil, &MissingCredentialError{Family: desc.Family}
	}

	logger := d.logger.With("model", req.Model, "family", desc.Family, "n", req.N)
	logger.DebugContext(ctx, "dispatching generation", "images", len(req.Images))

	switch desc.Family {
	case FamilyGemini:
		return d.dispatchGemini(ctx, desc, req, key)
	case FamilyOpenAI:
		return d.dispatchOpenAI(ctx, desc, req, key)
	default:
		return nil, &UnsupportedModelError{Model: req.Model}
	}
}

// batches разбивает n изображений на вызовы с учётом ограничений модели.
func batches(n int, caps Capabilities) []int {
	if n < 1 {
		n = 1
	}
	per := n
	if caps.FixedPerCall {
		per = 1
	} else if caps.PerCallLimit > 0 && per > caps.PerCallLimit {
		per = caps.PerCallLimit
	}

	var out []int
	for n > 0 {
		size := min(per, n)
		out = append(out, size)
		n -= size
	}
	return out
}

// fanOut выполняет вызовы последовательно и склеивает результаты.
// Первая ошибка прерывает выполнение, полученные изображения отбрасываются.
// Отмена ctx между вызовами возвращается как *BackendError семейства f.
func fanOut(ctx context.Context, f Family, sizes []int, call func(ctx context.Context, n int) ([]string, error)) ([]string, error) {
	images := []string{}
	for _, n := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, newBackendError(f, err)
		}
		got, err := call(ctx, n)
		if err != nil {
			return nil, err
		}
		images = append(images, got...)
	}
	return images, nil
}
