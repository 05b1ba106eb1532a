package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/shaiso/Artflow/internal/domain"
)

const (
	firstImage  = "data:image/jpeg;base64,Zmlyc3Q="
	secondImage = "data:image/png;base64,c2Vjb25k"
)

type fakeGemini struct {
	mu       sync.Mutex
	models   []string
	contents [][]*genai.Content
	respond  func(call int) (*genai.GenerateContentResponse, error)
}

func (f *fakeGemini) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, model)
	f.contents = append(f.contents, contents)
	return f.respond(len(f.models))
}

func imageResponse(data string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here you go"},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte(data)}},
			}},
		}},
	}
}

type fakeImages struct {
	generate   []openai.ImageGenerateParams
	variations []openai.ImageNewVariationParams
	varImages  [][]byte
	failOn     int
	noData     bool
}

func (f *fakeImages) Generate(_ context.Context, body openai.ImageGenerateParams, _ ...option.RequestOption) (*openai.ImagesResponse, error) {
	f.generate = append(f.generate, body)
	if f.failOn == len(f.generate) {
		return nil, errors.New("rate limited")
	}
	var data []openai.Image
	if f.noData {
		return &openai.ImagesResponse{Data: data}, nil
	}
	for i := int64(0); i < body.N.Value; i++ {
		data = append(data, openai.Image{URL: fmt.Sprintf("https://img/%d-%d.png", len(f.generate), i)})
	}
	return &openai.ImagesResponse{Data: data}, nil
}

func (f *fakeImages) NewVariation(_ context.Context, body openai.ImageNewVariationParams, _ ...option.RequestOption) (*openai.ImagesResponse, error) {
	f.variations = append(f.variations, body)
	raw, _ := io.ReadAll(body.Image)
	f.varImages = append(f.varImages, raw)
	var data []openai.Image
	for i := int64(0); i < body.N.Value; i++ {
		data = append(data, openai.Image{B64JSON: "dmFy"})
	}
	return &openai.ImagesResponse{Data: data}, nil
}

func newTestDispatcher(g *fakeGemini, o *fakeImages) (*Dispatcher, *int) {
	factoryCalls := 0
	d := New(Config{
		NewGemini: func(context.Context, string, string) (ContentGenerator, error) {
			factoryCalls++
			return g, nil
		},
		NewOpenAI: func(string, string) ImageService {
			factoryCalls++
			return o
		},
	})
	return d, &factoryCalls
}

var allCreds = domain.Credentials{Gemini: "g-key", OpenAI: "o-key"}

func TestDispatch_GeminiFanOutWithFirstImage(t *testing.T) {
	g := &fakeGemini{respond: func(call int) (*genai.GenerateContentResponse, error) {
		return imageResponse(fmt.Sprintf("img%d", call)), nil
	}}
	d, _ := newTestDispatcher(g, nil)

	images, err := d.Dispatch(context.Background(), Request{
		Model:  "gemini-2.5-flash-image",
		Prompt: "Shoe on a beach",
		Images: []string{firstImage, secondImage},
		N:      3,
	}, allCreds)
	require.NoError(t, err)

	require.Len(t, g.contents, 3)
	for i, contents := range g.contents {
		require.Len(t, contents, 1, "call %d", i)
		parts := contents[0].Parts
		require.Len(t, parts, 2, "call %d", i)
		assert.Equal(t, "Shoe on a beach", parts[0].Text)
		require.NotNil(t, parts[1].InlineData)
		assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
		assert.Equal(t, []byte("first"), parts[1].InlineData.Data)
		assert.Equal(t, "gemini-2.5-flash-image", g.models[i])
	}

	assert.Equal(t, []string{
		DataURI("image/png", []byte("img1")),
		DataURI("image/png", []byte("img2")),
		DataURI("image/png", []byte("img3")),
	}, images)
}

func TestDispatch_GeminiTextOnly(t *testing.T) {
	g := &fakeGemini{respond: func(int) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "I cannot draw that"}}},
		}}}, nil
	}}
	d, _ := newTestDispatcher(g, nil)

	_, err := d.Dispatch(context.Background(), Request{Model: "gemini-3-pro-image-preview", Prompt: "x", N: 2}, allCreds)
	require.ErrorIs(t, err, ErrNoImageGenerated)
	assert.Len(t, g.contents, 2)
	assert.Len(t, g.contents[0][0].Parts, 1)
}

func TestDispatch_GeminiPartialFailureDiscardsImages(t *testing.T) {
	g := &fakeGemini{respond: func(call int) (*genai.GenerateContentResponse, error) {
		if call == 2 {
			return nil, errors.New("quota exceeded")
		}
		return imageResponse("ok"), nil
	}}
	d, _ := newTestDispatcher(g, nil)

	images, err := d.Dispatch(context.Background(), Request{Model: "gemini-2.5-flash-image", Prompt: "x", N: 3}, allCreds)
	assert.Nil(t, images)
	require.ErrorIs(t, err, ErrBackend)

	var bErr *BackendError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, FamilyGemini, bErr.Family)
	assert.Equal(t, "Gemini API Error: quota exceeded", err.Error())
	assert.Len(t, g.contents, 2, "no calls after the failing one")
}

func TestDispatch_CancelBetweenCallsIsBackendError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := &fakeGemini{respond: func(int) (*genai.GenerateContentResponse, error) {
		cancel()
		return imageResponse("ok"), nil
	}}
	d, _ := newTestDispatcher(g, nil)

	images, err := d.Dispatch(ctx, Request{Model: "gemini-2.5-flash-image", Prompt: "x", N: 3}, allCreds)
	assert.Nil(t, images)
	require.ErrorIs(t, err, ErrBackend)
	require.ErrorIs(t, err, context.Canceled)

	var bErr *BackendError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, FamilyGemini, bErr.Family)
	assert.Equal(t, "Gemini API Error: context canceled", err.Error())
	assert.Len(t, g.contents, 1)
}

func TestDispatch_MissingCredential(t *testing.T) {
	tests := []struct {
		model  string
		creds  domain.Credentials
		family Family
	}{
		{model: "gemini-2.5-flash-image", creds: domain.Credentials{OpenAI: "o"}, family: FamilyGemini},
		{model: "dall-e-3", creds: domain.Credentials{Gemini: "g"}, family: FamilyOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			d, factoryCalls := newTestDispatcher(&fakeGemini{}, &fakeImages{})
			_, err := d.Dispatch(context.Background(), Request{Model: tt.model, Prompt: "x", N: 1}, tt.creds)

			require.ErrorIs(t, err, ErrMissingCredential)
			var mcErr *MissingCredentialError
			require.ErrorAs(t, err, &mcErr)
			assert.Equal(t, tt.family, mcErr.Family)
			assert.Zero(t, *factoryCalls)
		})
	}
}

func TestDispatch_UnsupportedModel(t *testing.T) {
	d, factoryCalls := newTestDispatcher(&fakeGemini{}, &fakeImages{})
	_, err := d.Dispatch(context.Background(), Request{Model: "stable-diffusion", Prompt: "x", N: 1}, allCreds)
	require.ErrorIs(t, err, ErrUnsupportedModel)
	assert.Zero(t, *factoryCalls)
}

func TestDispatch_DallE2Variation(t *testing.T) {
	o := &fakeImages{}
	d, _ := newTestDispatcher(nil, o)

	images, err := d.Dispatch(context.Background(), Request{
		Model:  "dall-e-2",
		Prompt: "ignored in variation mode",
		Images: []string{firstImage, secondImage},
		N:      2,
	}, allCreds)
	require.NoError(t, err)

	assert.Empty(t, o.generate)
	require.Len(t, o.variations, 1)
	assert.Equal(t, int64(2), o.variations[0].N.Value)
	assert.Equal(t, openai.ImageNewVariationParamsSize1024x1024, o.variations[0].Size)
	assert.Equal(t, []byte("first"), o.varImages[0])
	assert.Equal(t, []string{"data:image/png;base64,dmFy", "data:image/png;base64,dmFy"}, images)
}

func TestDispatch_DallE3FanOut(t *testing.T) {
	o := &fakeImages{}
	d, _ := newTestDispatcher(nil, o)

	images, err := d.Dispatch(context.Background(), Request{
		Model:  "dall-e-3",
		Prompt: "Shoe on a beach",
		Images: []string{firstImage},
		N:      3,
	}, allCreds)
	require.NoError(t, err)

	require.Len(t, o.generate, 3)
	for _, p := range o.generate {
		assert.Equal(t, "Shoe on a beach", p.Prompt)
		assert.Equal(t, int64(1), p.N.Value)
		assert.Equal(t, "dall-e-3", string(p.Model))
		assert.Equal(t, openai.ImageGenerateParamsSize1024x1024, p.Size)
	}
	assert.Empty(t, o.variations)
	assert.Equal(t, []string{"https://img/1-0.png", "https://img/2-0.png", "https://img/3-0.png"}, images)
}

func TestDispatch_DallE2TextToImageSingleCall(t *testing.T) {
	o := &fakeImages{}
	d, _ := newTestDispatcher(nil, o)

	images, err := d.Dispatch(context.Background(), Request{Model: "dall-e-2", Prompt: "x", N: 4}, allCreds)
	require.NoError(t, err)
	require.Len(t, o.generate, 1)
	assert.Equal(t, int64(4), o.generate[0].N.Value)
	assert.Len(t, images, 4)
}

func TestDispatch_DallE3PartialFailure(t *testing.T) {
	o := &fakeImages{failOn: 3}
	d, _ := newTestDispatcher(nil, o)

	images, err := d.Dispatch(context.Background(), Request{Model: "dall-e-3", Prompt: "x", N: 4}, allCreds)
	assert.Nil(t, images)
	require.ErrorIs(t, err, ErrBackend)
	assert.Equal(t, "OpenAI API Error: rate limited", err.Error())
	assert.Len(t, o.generate, 3)
}

func TestDispatch_OpenAIEmptyDataIsEmptySlice(t *testing.T) {
	o := &fakeImages{noData: true}
	d, _ := newTestDispatcher(nil, o)

	images, err := d.Dispatch(context.Background(), Request{Model: "dall-e-3", Prompt: "x", N: 2}, allCreds)
	require.NoError(t, err)
	require.NotNil(t, images)
	assert.Empty(t, images)
}

func TestDispatch_BadImageReference(t *testing.T) {
	o := &fakeImages{}
	d, _ := newTestDispatcher(nil, o)

	_, err := d.Dispatch(context.Background(), Request{Model: "dall-e-2", Prompt: "x", Images: []string{"%%%"}, N: 1}, allCreds)
	require.ErrorIs(t, err, ErrBackend)
	assert.Empty(t, o.variations)
}

func TestDispatch_OpenAIOverHTTP(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created": 1700000000, "data": [{"url": "https://cdn.example.com/a.png"}]}`))
	}))
	defer srv.Close()

	d := New(Config{OpenAIBaseURL: srv.URL + "/v1/"})
	images, err := d.Dispatch(context.Background(), Request{Model: "dall-e-3", Prompt: "Shoe on a beach", N: 1}, allCreds)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, images)
	assert.True(t, strings.HasSuffix(gotPath, "/images/generations"), gotPath)
	assert.Equal(t, "Bearer o-key", gotAuth)
	assert.Equal(t, "dall-e-3", gotBody["model"])
	assert.Equal(t, "Shoe on a beach", gotBody["prompt"])
	assert.Equal(t, "1024x1024", gotBody["size"])
}

func TestDispatch_OpenAIHTTPError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "content policy violation", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	d := New(Config{OpenAIBaseURL: srv.URL + "/v1/"})
	_, err := d.Dispatch(context.Background(), Request{Model: "dall-e-3", Prompt: "x", N: 1}, allCreds)

	require.ErrorIs(t, err, ErrBackend)
	var bErr *BackendError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, FamilyOpenAI, bErr.Family)
	assert.Equal(t, 1, calls, "retries must be disabled")
}
