// Package backend отправляет запросы генерации в семейства бэкендов.
//
// Registry сопоставляет идентификатор модели с семейством и его ограничениями
// (поддержка входного изображения, лимит изображений за вызов, fan-out по одному).
// Dispatcher проверяет ключ доступа, готовит изображения и вызывает SDK:
//   - FamilyGemini: google.golang.org/genai
//   - FamilyOpenAI: github.com/openai/openai-go
//
// Ретраев нет: встроенные повторы SDK отключены.
package backend
