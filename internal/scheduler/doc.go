// Package scheduler запускает сохранённые workflows по расписанию.
//
// Структура:
//   - scheduler.go: Tick: due schedules → runs → run.pending
//   - cron.go: cron/interval и вычисление следующего запуска
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules: scheduleRepo,
//	    Runs:      runRepo,
//	    Workflows: workflowRepo,
//	    Publisher: publisher,
//	    Logger:    logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Каждый run получает ключ идемпотентности "{schedule_id}_{due_unix}",
// поэтому повторный тик после сбоя не создаёт дубликат.
//
// Leader election не реализуется здесь: main.go берёт
// pg_try_advisory_lock и вызывает Tick только на лидере.
package scheduler
