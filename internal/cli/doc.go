// Package cli реализует инструмент командной строки Artflow.
//
// # Обзор
//
// Большинство команд работают через HTTP API и управляют workflows, runs
// и schedules. Команды exec и validate работают локально: граф читается из
// файла и проходит через тот же движок, что и воркер.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Artflow API. Инкапсулирует запросы, разбор ответов
// (DataResponse, ListResponse, ErrorResponse) и чтение websocket-стрима run.
//
//	client := cli.NewClient("http://localhost:8080")
//	err := client.WatchRun(runID, func(ev cli.StreamEvent) { ... })
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter), по умолчанию
//   - JSON, с флагом --json
//
// Данные выводятся в stdout, сообщения и прогресс в stderr:
//
//	artflow run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - workflow: list, create, show, update, delete
//   - run: list, start, show, outputs, watch
//   - schedule: list, create, show, update, delete, enable, disable
//   - optimize, models
//   - exec, validate (локально)
//
// Каждая группа создаётся через фабричную функцию (NewWorkflowCmd и т.д.),
// принимающую clientFn и outputFn: замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
