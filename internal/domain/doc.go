// Package domain содержит доменные типы Artflow.
//
// Основные сущности:
//   - Graph: граф узлов Input → Prompt → Model → Output
//   - Workflow: сохранённый именованный граф
//   - Run: одно выполнение снимка графа
//   - Schedule: расписание повторных запусков workflow
//
// Пакет не зависит от инфраструктуры (БД, очереди, SDK моделей).
package domain
