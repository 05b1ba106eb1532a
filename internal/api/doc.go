// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go: Handler с DI (хранилища, publisher, стрим, оптимизатор)
//   - routes.go: регистрация маршрутов
//   - middleware.go: middleware (recovery, metrics, logging)
//   - response.go: унифицированные JSON-ответы и обработка ошибок
//   - dto.go: Data Transfer Objects (request/response)
//   - workflow_handler.go: обработчики для /workflows
//   - run_handler.go: обработчики для /runs
//   - stream_handler.go: websocket-стрим статусов run
//   - schedule_handler.go: обработчики для /schedules
//   - prompt_handler.go: оптимизация промптов и список моделей
//
// Графы из запросов проходят engine.ParseAndValidate до сохранения.
// Генерация выполняется асинхронно: API создаёт PENDING run и публикует
// run.pending, дальше работает worker.
package api
