package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Artflow/internal/domain"
)

const jsonGraph = `{
  "nodes": [
    {"id": "in1", "type": "input", "attributes": [{"id": "a1", "kind": "text", "label": "Product", "value": "Shoe"}]},
    {"id": "p1", "type": "prompt", "template": "{{Product}} on a beach"},
    {"id": "m1", "type": "model", "model": {"name": "dall-e-3", "n": 2}},
    {"id": "o1", "type": "output"}
  ],
  "edges": [
    {"id": "e1", "source": "in1", "target": "p1"},
    {"id": "e2", "source": "p1", "target": "m1"},
    {"id": "e3", "source": "m1", "target": "o1"}
  ]
}`

const yamlGraph = `
nodes:
  - id: in1
    type: input
    attributes:
      - id: a1
        kind: text
        label: Product
        value: Shoe
  - id: p1
    type: prompt
    template: "{{Product}} on a beach"
  - id: m1
    type: model
    model:
      name: dall-e-3
      n: 2
  - id: o1
    type: output
edges:
  - {id: e1, source: in1, target: p1}
  - {id: e2, source: p1, target: m1}
  - {id: e3, source: m1, target: o1}
`

func TestParseGraph_Formats(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "json", doc: jsonGraph},
		{name: "yaml", doc: yamlGraph},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseAndValidate([]byte(tt.doc))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(g.Nodes) != 4 || len(g.Edges) != 3 {
				t.Fatalf("unexpected graph size: %d nodes, %d edges", len(g.Nodes), len(g.Edges))
			}
			m, ok := g.Node("m1")
			if !ok || m.Model.ModelName() != "dall-e-3" || m.Model.N != 2 {
				t.Errorf("unexpected model node: %+v", m)
			}
			p, _ := g.Node("p1")
			if p.Template != "{{Product}} on a beach" {
				t.Errorf("unexpected template: %q", p.Template)
			}
		})
	}
}

func TestParseGraph_Invalid(t *testing.T) {
	for _, doc := range []string{"", "{not json", "nodes: [unclosed"} {
		if _, err := ParseGraph([]byte(doc)); !errors.Is(err, ErrGraphParse) {
			t.Errorf("doc %q: expected ErrGraphParse, got %v", doc, err)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *domain.Graph {
		g, err := ParseGraph([]byte(jsonGraph))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		return g
	}

	tests := []struct {
		name   string
		mutate func(g *domain.Graph)
		want   error
	}{
		{
			name:   "empty graph",
			mutate: func(g *domain.Graph) { g.Nodes = nil },
			want:   ErrEmptyGraph,
		},
		{
			name:   "empty node id",
			mutate: func(g *domain.Graph) { g.Nodes[0].ID = "" },
			want:   ErrEmptyNodeID,
		},
		{
			name:   "duplicate node id",
			mutate: func(g *domain.Graph) { g.Nodes[1].ID = "in1" },
			want:   ErrDuplicateNodeID,
		},
		{
			name:   "unknown type",
			mutate: func(g *domain.Graph) { g.Nodes[3].Type = "canvas" },
			want:   ErrUnknownNodeType,
		},
		{
			name:   "unknown edge node",
			mutate: func(g *domain.Graph) { g.Edges[0].Source = "ghost" },
			want:   ErrUnknownEdgeNode,
		},
		{
			name:   "skipping a stage",
			mutate: func(g *domain.Graph) { g.Edges[0].Target = "m1" },
			want:   ErrInvalidEdgeStage,
		},
		{
			name:   "edge out of output",
			mutate: func(g *domain.Graph) { g.Edges[2] = domain.Edge{ID: "e3", Source: "o1", Target: "in1"} },
			want:   ErrInvalidEdgeStage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid()
			tt.mutate(g)
			err := Validate(g)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_NilGraph(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrEmptyGraph) {
		t.Errorf("expected ErrEmptyGraph, got %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("e1", "target", "prompt cannot connect to output", ErrInvalidEdgeStage)
	if err.Error() != "e1: prompt cannot connect to output" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, ErrInvalidEdgeStage) {
		t.Error("expected to unwrap to ErrInvalidEdgeStage")
	}
}
