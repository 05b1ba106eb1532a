package backend

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/shaiso/Artflow/internal/telemetry"
)

// ContentGenerator это часть genai.Models, которую использует Dispatcher.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiFactory создаёт ContentGenerator для ключа.
type GeminiFactory func(ctx context.Context, apiKey, baseURL string) (ContentGenerator, error)

// NewGeminiClient создаёт клиент Gemini Developer API.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string) (ContentGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

func (d *Dispatcher) dispatchGemini(ctx context.Context, desc Descriptor, req Request, key string) ([]string, error) {
	client, err := d.newGemini(ctx, key, d.geminiURL)
	if err != nil {
		return nil, newBackendError(FamilyGemini, err)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if desc.Capabilities.ImageInput != ImageInputNone && len(req.Images) > 0 {
		img, err := d.images.Load(ctx, req.Images[0])
		if err != nil {
			return nil, newBackendError(FamilyGemini, err)
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	images, err := fanOut(ctx, FamilyGemini, batches(req.N, desc.Capabilities), func(ctx context.Context, _ int) ([]string, error) {
		started := time.Now()
		resp, err := client.GenerateContent(ctx, desc.Model, contents, nil)
		telemetry.ObserveBackendCall(string(FamilyGemini), started, err)
		if err != nil {
			return nil, newBackendError(FamilyGemini, err)
		}
		return geminiImages(resp), nil
	})
	if err != nil {
		return nil, err
	}

	if len(images) == 0 {
		return nil, ErrNoImageGenerated
	}
	return images, nil
}

// geminiImages извлекает inline-изображения из ответа. Текстовые части пропускаются.
func geminiImages(resp *genai.GenerateContentResponse) []string {
	var images []string
	if resp == nil {
		return images
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			images = append(images, DataURI(p.InlineData.MIMEType, p.InlineData.Data))
		}
	}
	return images
}
