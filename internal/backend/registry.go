package backend

import (
	"sort"
	"strings"
	"sync"
)

type prefixRule struct {
	prefix       string
	family       Family
	capabilities Capabilities
}

// Registry хранит соответствие моделей и семейств.
//
// Сначала ищется точное совпадение, затем правила по префиксу
// в порядке регистрации.
type Registry struct {
	mu       sync.RWMutex
	exact    map[string]Descriptor
	prefixes []prefixRule
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{exact: make(map[string]Descriptor)}
}

var (
	geminiCaps = Capabilities{PerCallLimit: 1, FixedPerCall: true, ImageInput: ImageInputInline}
	dalle3Caps = Capabilities{PerCallLimit: 1, FixedPerCall: true, ImageInput: ImageInputNone}
	dalle2Caps = Capabilities{PerCallLimit: 10, ImageInput: ImageInputVariation}
)

// DefaultRegistry создаёт реестр с известными моделями и префиксами gemini и dall-e.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("dall-e-3", FamilyOpenAI, dalle3Caps)
	r.Register("dall-e-2", FamilyOpenAI, dalle2Caps)
	r.Register("gemini-2.5-flash-image", FamilyGemini, geminiCaps)
	r.Register("gemini-3-pro-image-preview", FamilyGemini, geminiCaps)
	r.RegisterPrefix("gemini", FamilyGemini, geminiCaps)
	r.RegisterPrefix("dall-e", FamilyOpenAI, Capabilities{PerCallLimit: 10, ImageInput: ImageInputNone})
	return r
}

// Register добавляет точное соответствие модели.
func (r *Registry) Register(model string, family Family, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[model] = Descriptor{Model: model, Family: family, Capabilities: caps}
}

// RegisterPrefix добавляет правило по префиксу идентификатора.
func (r *Registry) RegisterPrefix(prefix string, family Family, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefixRule{prefix: prefix, family: family, capabilities: caps})
}

// Resolve возвращает дескриптор модели или *UnsupportedModelError.
func (r *Registry) Resolve(model string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.exact[model]; ok {
		return d, nil
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(model, p.prefix) {
			return Descriptor{Model: model, Family: p.family, Capabilities: p.capabilities}, nil
		}
	}
	return Descriptor{}, &UnsupportedModelError{Model: model}
}

// Models возвращает модели с точным соответствием, отсортированные по имени.
func (r *Registry) Models() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.exact))
	for _, d := range r.exact {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}
