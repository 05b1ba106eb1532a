package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrNoOutputNode: в графе нет ни одного Output-узла. Ни одна ветка не запускается.
	ErrNoOutputNode = errors.New("no output node found")

	// ErrNoDispatcher: Orchestrator создан без Dispatcher.
	ErrNoDispatcher = errors.New("dispatcher is not configured")
)
