package engine

import (
	"errors"
	"strings"
)

// Ошибки обхода графа.
var (
	// ErrMissingModelConnection: у Output-узла нет входящего ребра.
	ErrMissingModelConnection = errors.New("output is not connected to a model")

	// ErrMissingPromptConnection: у Model-узла нет входящего ребра.
	ErrMissingPromptConnection = errors.New("model is not connected to a prompt")

	// ErrInvalidConnection: ребро ведёт из несуществующего узла или узла неверного типа.
	ErrInvalidConnection = errors.New("invalid connection")
)

// Ошибки подстановки шаблона.
var (
	// ErrMissingVariables: в шаблоне есть плейсхолдеры без значений.
	ErrMissingVariables = errors.New("missing variables")

	// ErrEmptyPrompt: после подстановки промпт пуст.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Ошибки валидации графа.
var (
	ErrEmptyGraph       = errors.New("graph has no nodes")
	ErrEmptyNodeID      = errors.New("node has empty ID")
	ErrDuplicateNodeID  = errors.New("duplicate node ID")
	ErrUnknownNodeType  = errors.New("unknown node type")
	ErrUnknownEdgeNode  = errors.New("edge references unknown node")
	ErrInvalidEdgeStage = errors.New("edge connects non-adjacent stages")
	ErrGraphParse       = errors.New("graph parse failed")
)

// MissingVariablesError перечисляет ключи без значений.
//
// Keys идут в порядке первого появления, без повторов.
// Partial содержит текст с маркерами [Missing: key] и служит только для диагностики.
type MissingVariablesError struct {
	Keys    []string
	Partial string
}

// Error реализует интерфейс error.
func (e *MissingVariablesError) Error() string {
	return "Missing variables: " + strings.Join(e.Keys, ", ")
}

// Is позволяет сравнивать через errors.Is(err, ErrMissingVariables).
func (e *MissingVariablesError) Is(target error) bool {
	return target == ErrMissingVariables
}

// ValidationError описывает ошибку валидации с контекстом.
type ValidationError struct {
	NodeID  string // ID узла или ребра, где произошла ошибка
	Field   string
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
