package backend

import (
	"bytes"
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/shaiso/Artflow/internal/telemetry"
)

// ImageService это часть openai.ImageService, которую использует Dispatcher.
type ImageService interface {
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
	NewVariation(ctx context.Context, body openai.ImageNewVariationParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

// OpenAIFactory создаёт ImageService для ключа.
type OpenAIFactory func(apiKey, baseURL string) ImageService

// NewOpenAIImages создаёт клиент изображений OpenAI без встроенных повторов.
func NewOpenAIImages(apiKey, baseURL string) ImageService {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client.Images
}

// namedImage передаёт изображение в multipart-форму с именем файла и mime.
type namedImage struct {
	*bytes.Reader
	name     string
	mimeType string
}

func (f namedImage) Filename() string    { return f.name }
func (f namedImage) ContentType() string { return f.mimeType }

func (d *Dispatcher) dispatchOpenAI(ctx context.Context, desc Descriptor, req Request, key string) ([]string, error) {
	client := d.newOpenAI(key, d.openaiURL)
	sizes := batches(req.N, desc.Capabilities)

	if desc.Capabilities.ImageInput == ImageInputVariation && len(req.Images) > 0 {
		img, err := d.images.Load(ctx, req.Images[0])
		if err != nil {
			return nil, newBackendError(FamilyOpenAI, err)
		}

		return fanOut(ctx, FamilyOpenAI, sizes, func(ctx context.Context, n int) ([]string, error) {
			started := time.Now()
			resp, err := client.NewVariation(ctx, openai.ImageNewVariationParams{
				Image: namedImage{Reader: bytes.NewReader(img.Data), name: "image.png", mimeType: "image/png"},
				Model: openai.ImageModel(desc.Model),
				N:     openai.Int(int64(n)),
				Size:  openai.ImageNewVariationParamsSize1024x1024,
			})
			telemetry.ObserveBackendCall(string(FamilyOpenAI), started, err)
			if err != nil {
				return nil, newBackendError(FamilyOpenAI, err)
			}
			return openaiImages(resp), nil
		})
	}

	return fanOut(ctx, FamilyOpenAI, sizes, func(ctx context.Context, n int) ([]string, error) {
		started := time.Now()
		resp, err := client.Generate(ctx, openai.ImageGenerateParams{
			Prompt: req.Prompt,
			Model:  openai.ImageModel(desc.Model),
			N:      openai.Int(int64(n)),
			Size:   openai.ImageGenerateParamsSize1024x1024,
		})
		telemetry.ObserveBackendCall(string(FamilyOpenAI), started, err)
		if err != nil {
			return nil, newBackendError(FamilyOpenAI, err)
		}
		return openaiImages(resp), nil
	})
}

// openaiImages возвращает URL изображений, либо data URI для ответов в base64.
func openaiImages(resp *openai.ImagesResponse) []string {
	images := []string{}
	if resp == nil {
		return images
	}
	for _, img := range resp.Data {
		switch {
		case img.URL != "":
			images = append(images, img.URL)
		case img.B64JSON != "":
			images = append(images, "data:image/png;base64,"+img.B64JSON)
		}
	}
	return images
}
