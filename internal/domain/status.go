package domain

// RunStatus описывает статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ PARTIAL (часть веток с ошибкой)
//	                  ↘ FAILED
type RunStatus string

const (
	// RunStatusPending: run создан и ждёт воркера.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning: воркер выполняет ветки.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded: все ветки завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusPartial: есть и успешные ветки, и ветки с ошибкой.
	RunStatusPartial RunStatus = "PARTIAL"

	// RunStatusFailed: все ветки с ошибкой или фатальная ошибка графа.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// RunStatusFromCounts выводит итоговый статус run по числу успешных и неуспешных веток.
func RunStatusFromCounts(succeeded, failed int) RunStatus {
	switch {
	case failed == 0 && succeeded > 0:
		return RunStatusSucceeded
	case succeeded > 0 && failed > 0:
		return RunStatusPartial
	default:
		return RunStatusFailed
	}
}
