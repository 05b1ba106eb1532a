// Package worker выполняет runs.
//
// Worker получает run.pending из RabbitMQ и дополнительно опрашивает БД
// (polling fallback), атомарно переводит run в RUNNING, выполняет снимок
// графа через orchestrator и сохраняет каждый статус Output-узла:
//
//   - в таблицу run_outputs (последний статус узла)
//   - в Redis (снимок + pub/sub для websocket-стрима)
//   - в RabbitMQ как событие output.status
//
// Итог run: SUCCEEDED, если все ветки успешны, PARTIAL при смешанном
// результате, FAILED если все ветки упали или граф не выполнился вовсе.
//
//	w := worker.New(worker.Config{
//	    Runs:        runRepo,
//	    Outputs:     outputRepo,
//	    Cache:       statusStore,
//	    Publisher:   publisher,
//	    Conn:        mqConn,
//	    Executor:    orch,
//	    Credentials: cfg.Credentials(),
//	})
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// Повторов нет: упавшая ветка остаётся в error, пользователь запускает
// run заново.
package worker
