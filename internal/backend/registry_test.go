package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Artflow/internal/domain"
)

func TestRegistry_Resolve(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		model  string
		family Family
		caps   Capabilities
	}{
		{model: "dall-e-3", family: FamilyOpenAI, caps: dalle3Caps},
		{model: "dall-e-2", family: FamilyOpenAI, caps: dalle2Caps},
		{model: "gemini-2.5-flash-image", family: FamilyGemini, caps: geminiCaps},
		{model: "gemini-3-pro-image-preview", family: FamilyGemini, caps: geminiCaps},
		{model: "gemini-next", family: FamilyGemini, caps: geminiCaps},
		{model: "dall-e-4", family: FamilyOpenAI, caps: Capabilities{PerCallLimit: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			d, err := r.Resolve(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.model, d.Model)
			assert.Equal(t, tt.family, d.Family)
			assert.Equal(t, tt.caps, d.Capabilities)
		})
	}
}

func TestRegistry_Unsupported(t *testing.T) {
	_, err := DefaultRegistry().Resolve("midjourney-v6")
	require.ErrorIs(t, err, ErrUnsupportedModel)

	var umErr *UnsupportedModelError
	require.ErrorAs(t, err, &umErr)
	assert.Equal(t, "midjourney-v6", umErr.Model)
	assert.Equal(t, "Unsupported model: midjourney-v6", err.Error())
}

func TestRegistry_ExactBeforePrefix(t *testing.T) {
	r := NewRegistry()
	r.RegisterPrefix("gemini", FamilyGemini, geminiCaps)
	r.Register("gemini-special", FamilyOpenAI, dalle3Caps)

	d, err := r.Resolve("gemini-special")
	require.NoError(t, err)
	assert.Equal(t, FamilyOpenAI, d.Family)
}

func TestRegistry_Models(t *testing.T) {
	models := DefaultRegistry().Models()
	require.Len(t, models, 4)
	assert.Equal(t, "dall-e-2", models[0].Model)
	assert.Equal(t, "gemini-3-pro-image-preview", models[3].Model)
}

func TestFamily_Credential(t *testing.T) {
	creds := domain.Credentials{Gemini: "g", OpenAI: "o"}
	assert.Equal(t, "g", FamilyGemini.Credential(creds))
	assert.Equal(t, "o", FamilyOpenAI.Credential(creds))
	assert.Empty(t, Family("other").Credential(creds))
}

func TestBatches(t *testing.T) {
	assert.Equal(t, []int{1, 1, 1}, batches(3, dalle3Caps))
	assert.Equal(t, []int{4}, batches(4, dalle2Caps))
	assert.Equal(t, []int{2, 2, 1}, batches(5, Capabilities{PerCallLimit: 2}))
	assert.Equal(t, []int{1}, batches(0, Capabilities{}))
}
