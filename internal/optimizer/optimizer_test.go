package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/domain"
)

type fakeChatModel struct {
	input []*schema.Message
	reply *schema.Message
	err   error
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	return f.reply, f.err
}

func newTestOptimizer(cm *fakeChatModel, gotKey *string) *Optimizer {
	return New(Config{NewModel: func(_ context.Context, apiKey string) (ChatModel, error) {
		if gotKey != nil {
			*gotKey = apiKey
		}
		return cm, nil
	}})
}

func TestOptimize_BuildsMessages(t *testing.T) {
	cm := &fakeChatModel{reply: schema.AssistantMessage("  A glossy {{Product}} on a sunlit beach  ", nil)}
	var key string
	o := newTestOptimizer(cm, &key)

	out, err := o.Optimize(context.Background(), OptimizeRequest{
		Context:  "Product: Shoe",
		Template: "{{Product}} on a beach",
		APIKey:   "sk-test",
	})
	require.NoError(t, err)

	assert.Equal(t, "A glossy {{Product}} on a sunlit beach", out)
	assert.Equal(t, "sk-test", key)

	require.Len(t, cm.input, 2)
	assert.Equal(t, schema.System, cm.input[0].Role)
	assert.Contains(t, cm.input[0].Content, "prompt engineer")
	assert.Equal(t, schema.User, cm.input[1].Role)
	assert.Contains(t, cm.input[1].Content, "Product: Shoe")
	assert.Contains(t, cm.input[1].Content, `"{{Product}} on a beach"`)
}

func TestOptimize_EmptyReplyKeepsTemplate(t *testing.T) {
	cm := &fakeChatModel{reply: schema.AssistantMessage("   ", nil)}
	out, err := newTestOptimizer(cm, nil).Optimize(context.Background(), OptimizeRequest{Template: "a cat", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "a cat", out)
}

func TestOptimize_MissingKey(t *testing.T) {
	cm := &fakeChatModel{}
	_, err := newTestOptimizer(cm, nil).Optimize(context.Background(), OptimizeRequest{Template: "a cat"})
	require.ErrorIs(t, err, backend.ErrMissingCredential)
	assert.Nil(t, cm.input, "model must not be called")
}

func TestOptimize_ModelError(t *testing.T) {
	cm := &fakeChatModel{err: errors.New("401 unauthorized")}
	_, err := newTestOptimizer(cm, nil).Optimize(context.Background(), OptimizeRequest{Template: "a cat", APIKey: "k"})
	require.ErrorIs(t, err, ErrOptimizationFailed)
	assert.Contains(t, err.Error(), "401 unauthorized")
}

func TestBuildContext(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{
			{ID: "in1", Type: domain.NodeTypeInput, Attributes: []domain.Attribute{
				{Kind: domain.AttributeKindText, Label: " Product ", Value: "Shoe"},
				{Kind: domain.AttributeKindImage, Label: "Ref", Value: "data:image/png;base64,AAA"},
				{Kind: domain.AttributeKindText, Label: "", Value: "unlabeled"},
			}},
			{ID: "in2", Type: domain.NodeTypeInput, Attributes: []domain.Attribute{
				{Kind: domain.AttributeKindText, Label: "Color", Value: "red"},
			}},
			{ID: "p", Type: domain.NodeTypePrompt},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "in1", Target: "p"},
			{ID: "e2", Source: "in2", Target: "p"},
		},
	}

	assert.Equal(t, "Product: Shoe\nColor: red", BuildContext(g, "p"))
	assert.Empty(t, BuildContext(g, "missing"))
}
