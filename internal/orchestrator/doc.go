// Package orchestrator выполняет граф workflow по веткам.
//
// Веткой считается путь до одного Output-узла. Для каждой ветки Orchestrator:
//   - записывает статус loading
//   - обходит граф (engine.Trace) и подставляет значения (engine.Resolve)
//   - приводит количество изображений к [1, 4]
//   - вызывает Dispatcher
//   - записывает финальный статус success или error
//
// Ошибка ветки не влияет на остальные ветки.
package orchestrator
