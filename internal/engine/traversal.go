package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/Artflow/internal/domain"
)

// Branch содержит всё, что нужно для генерации одного Output-узла.
type Branch struct {
	OutputNodeID string
	ModelNodeID  string
	PromptNodeID string

	Model    domain.ModelConfig
	Template string

	// Values отображает метку атрибута в значение.
	Values map[string]string

	// Images содержит ссылки на изображения в порядке обнаружения.
	Images []string
}

// Trace обходит граф назад от Output-узла: Output ← Model ← Prompt ← Inputs.
//
// Для Output и Model берётся первое входящее ребро в порядке списка рёбер.
// Для Prompt учитываются все входящие рёбра из Input-узлов. При совпадении
// меток побеждает последнее значение: сначала по порядку рёбер, затем по
// порядку атрибутов внутри узла.
func Trace(g domain.Graph, outputNodeID string) (*Branch, error) {
	modelEdge, ok := firstEdgeTo(g.Edges, outputNodeID)
	if !ok {
		return nil, ErrMissingModelConnection
	}
	model, err := sourceOfType(g, modelEdge, domain.NodeTypeModel)
	if err != nil {
		return nil, err
	}

	promptEdge, ok := firstEdgeTo(g.Edges, model.ID)
	if !ok {
		return nil, ErrMissingPromptConnection
	}
	prompt, err := sourceOfType(g, promptEdge, domain.NodeTypePrompt)
	if err != nil {
		return nil, err
	}

	b := &Branch{
		OutputNodeID: outputNodeID,
		ModelNodeID:  model.ID,
		PromptNodeID: prompt.ID,
		Template:     prompt.Template,
		Values:       make(map[string]string),
		Images:       []string{},
	}
	if model.Model != nil {
		b.Model = *model.Model
	}

	for _, input := range InputsOf(g, prompt.ID) {
		for _, attr := range input.Attributes {
			if attr.Kind == domain.AttributeKindImage && attr.Value != "" {
				b.Images = append(b.Images, attr.Value)
			}
			if label := strings.TrimSpace(attr.Label); label != "" {
				b.Values[label] = attr.Value
			}
		}
	}

	return b, nil
}

// InputsOf возвращает Input-узлы, подключённые к promptID, в порядке рёбер.
// Рёбра из узлов других типов пропускаются.
func InputsOf(g domain.Graph, promptID string) []domain.Node {
	var inputs []domain.Node
	for _, e := range g.Edges {
		if e.Target != promptID {
			continue
		}
		n, ok := g.Node(e.Source)
		if !ok || n.Type != domain.NodeTypeInput {
			continue
		}
		inputs = append(inputs, *n)
	}
	return inputs
}

func firstEdgeTo(edges []domain.Edge, target string) (domain.Edge, bool) {
	for _, e := range edges {
		if e.Target == target {
			return e, true
		}
	}
	return domain.Edge{}, false
}

func sourceOfType(g domain.Graph, e domain.Edge, want domain.NodeType) (*domain.Node, error) {
	n, ok := g.Node(e.Source)
	if !ok {
		return nil, fmt.Errorf("%w: edge %s: source node %q not found", ErrInvalidConnection, e.ID, e.Source)
	}
	if n.Type != want {
		return nil, fmt.Errorf("%w: edge %s: expected %s node, got %s", ErrInvalidConnection, e.ID, want, n.Type)
	}
	return n, nil
}
