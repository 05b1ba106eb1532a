package worker

import "errors"

// Ошибки воркера.
var (
	// ErrRunNotFound это run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending это run уже взят другим воркером или завершён.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrNoExecutor это не задан Executor.
	ErrNoExecutor = errors.New("executor is not configured")
)
