// Package engine содержит чистую логику движка workflow.
//
// Включает:
//   - parser.go    парсинг и валидация графа (JSON или YAML)
//   - traversal.go обход графа от Output-узла назад до Input-узлов
//   - template.go  подстановка {{Label}} в шаблон промпта
//
// Пакет не выполняет сетевых вызовов и не изменяет граф.
package engine
