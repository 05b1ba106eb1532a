package domain

// NodeType определяет тип узла графа.
type NodeType string

const (
	// NodeTypeInput содержит набор атрибутов (текст или изображение).
	NodeTypeInput NodeType = "input"

	// NodeTypePrompt содержит шаблон промпта с плейсхолдерами {{Label}}.
	NodeTypePrompt NodeType = "prompt"

	// NodeTypeModel содержит настройки модели генерации.
	NodeTypeModel NodeType = "model"

	// NodeTypeOutput принимает результат генерации.
	NodeTypeOutput NodeType = "output"
)

// IsValid возвращает true для известных типов узлов.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeInput, NodeTypePrompt, NodeTypeModel, NodeTypeOutput:
		return true
	default:
		return false
	}
}

// AttributeKind определяет вид значения атрибута.
type AttributeKind string

const (
	AttributeKindText  AttributeKind = "text"
	AttributeKindImage AttributeKind = "image"
)

// DefaultModel используется, когда идентификатор модели не задан.
const DefaultModel = "dall-e-3"

// Graph описывает граф workflow.
//
// Рёбра соединяют соседние стадии: Input → Prompt → Model → Output.
// Порядок узлов и рёбер значим: обход использует первое подходящее ребро,
// а выходные ветки выполняются в порядке узлов.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Node описывает узел графа.
//
// Заполнены только поля, соответствующие Type:
//   - input: Attributes
//   - prompt: Template
//   - model: Model
//   - output: Output
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Type NodeType `json:"type" yaml:"type"`

	// Label отображается в редакторе, движок его не использует.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	Attributes []Attribute   `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Template   string        `json:"template,omitempty" yaml:"template,omitempty"`
	Model      *ModelConfig  `json:"model,omitempty" yaml:"model,omitempty"`
	Output     *OutputStatus `json:"output,omitempty" yaml:"output,omitempty"`
}

// Edge описывает направленную связь source → target.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Attribute описывает значение Input-узла.
//
// Label служит ключом подстановки в шаблон.
// Для изображений Value содержит data URI или URL.
type Attribute struct {
	ID    string        `json:"id" yaml:"id"`
	Kind  AttributeKind `json:"kind" yaml:"kind"`
	Label string        `json:"label" yaml:"label"`
	Value string        `json:"value" yaml:"value"`
}

// ModelConfig содержит настройки Model-узла.
type ModelConfig struct {
	// Name это идентификатор модели ("dall-e-3", "gemini-2.5-flash-image", ...).
	Name string `json:"name" yaml:"name"`

	// N это запрошенное количество изображений (ожидается 1..4).
	N int `json:"n" yaml:"n"`
}

// ModelName возвращает идентификатор модели или DefaultModel.
func (c *ModelConfig) ModelName() string {
	if c == nil || c.Name == "" {
		return DefaultModel
	}
	return c.Name
}

// Node возвращает узел по ID.
func (g *Graph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// OutputNodes возвращает Output-узлы в порядке их следования в графе.
func (g *Graph) OutputNodes() []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Type == NodeTypeOutput {
			out = append(out, n)
		}
	}
	return out
}

// Clone возвращает глубокую копию графа.
func (g Graph) Clone() Graph {
	c := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: append([]Edge(nil), g.Edges...),
	}
	for i, n := range g.Nodes {
		n.Attributes = append([]Attribute(nil), n.Attributes...)
		if n.Model != nil {
			m := *n.Model
			n.Model = &m
		}
		if n.Output != nil {
			o := n.Output.Clone()
			n.Output = &o
		}
		c.Nodes[i] = n
	}
	return c
}
