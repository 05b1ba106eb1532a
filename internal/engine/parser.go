package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Artflow/internal/domain"
)

// Допустимые переходы между стадиями графа.
var allowedEdges = map[domain.NodeType]domain.NodeType{
	domain.NodeTypeInput:  domain.NodeTypePrompt,
	domain.NodeTypePrompt: domain.NodeTypeModel,
	domain.NodeTypeModel:  domain.NodeTypeOutput,
}

// ParseGraph разбирает документ графа в формате JSON или YAML.
//
// JSON определяется по первому непробельному символу '{'.
// Валидация не выполняется, для неё есть Validate.
func ParseGraph(data []byte) (*domain.Graph, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrGraphParse)
	}

	var g domain.Graph
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &g); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGraphParse, err)
		}
		return &g, nil
	}

	if err := yaml.Unmarshal(trimmed, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphParse, err)
	}
	return &g, nil
}

// Validate проверяет граф на входе API/CLI.
//
// Проверяет:
// - наличие узлов
// - непустые и уникальные ID узлов
// - известные типы узлов
// - что рёбра ссылаются на существующие узлы
// - что рёбра соединяют соседние стадии
//
// Ядро движка граф не валидирует: отсутствующие связи становятся ошибкой ветки.
func Validate(g *domain.Graph) error {
	if g == nil || len(g.Nodes) == 0 {
		return ErrEmptyGraph
	}

	types := make(map[string]domain.NodeType, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return NewValidationError("", "id", "node has empty ID", ErrEmptyNodeID)
		}
		if _, dup := types[n.ID]; dup {
			return NewValidationError(n.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", n.ID), ErrDuplicateNodeID)
		}
		if !n.Type.IsValid() {
			return NewValidationError(n.ID, "type",
				fmt.Sprintf("unknown node type: %s", n.Type), ErrUnknownNodeType)
		}
		types[n.ID] = n.Type
	}

	for _, e := range g.Edges {
		src, ok := types[e.Source]
		if !ok {
			return NewValidationError(e.ID, "source",
				fmt.Sprintf("unknown source node: %s", e.Source), ErrUnknownEdgeNode)
		}
		dst, ok := types[e.Target]
		if !ok {
			return NewValidationError(e.ID, "target",
				fmt.Sprintf("unknown target node: %s", e.Target), ErrUnknownEdgeNode)
		}
		if allowedEdges[src] != dst {
			return NewValidationError(e.ID, "target",
				fmt.Sprintf("%s cannot connect to %s", src, dst), ErrInvalidEdgeStage)
		}
	}

	return nil
}

// ParseAndValidate разбирает документ и сразу его валидирует.
func ParseAndValidate(data []byte) (*domain.Graph, error) {
	g, err := ParseGraph(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}
