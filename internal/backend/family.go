package backend

import "github.com/shaiso/Artflow/internal/domain"

// Family определяет семейство API генерации изображений.
type Family string

const (
	FamilyGemini Family = "gemini"
	FamilyOpenAI Family = "openai"
)

// Label возвращает имя семейства для сообщений пользователю.
func (f Family) Label() string {
	switch f {
	case FamilyGemini:
		return "Gemini"
	case FamilyOpenAI:
		return "OpenAI"
	default:
		return string(f)
	}
}

// Credential возвращает ключ семейства из набора ключей.
func (f Family) Credential(c domain.Credentials) string {
	switch f {
	case FamilyGemini:
		return c.Gemini
	case FamilyOpenAI:
		return c.OpenAI
	default:
		return ""
	}
}

// ImageInput определяет, как модель использует входные изображения.
type ImageInput int

const (
	// ImageInputNone: изображения игнорируются.
	ImageInputNone ImageInput = iota

	// ImageInputInline: первое изображение передаётся вместе с промптом.
	ImageInputInline

	// ImageInputVariation: первое изображение заменяет промпт (режим вариаций).
	ImageInputVariation
)

func (i ImageInput) String() string {
	switch i {
	case ImageInputInline:
		return "inline"
	case ImageInputVariation:
		return "variation"
	default:
		return "none"
	}
}

// Capabilities описывает ограничения модели.
type Capabilities struct {
	// PerCallLimit это максимум изображений за один вызов (0 = без ограничения).
	PerCallLimit int

	// FixedPerCall: модель возвращает ровно одно изображение за вызов,
	// поэтому N изображений требуют N последовательных вызовов.
	FixedPerCall bool

	ImageInput ImageInput
}

// Descriptor связывает модель с семейством и ограничениями.
type Descriptor struct {
	Model        string
	Family       Family
	Capabilities Capabilities
}
