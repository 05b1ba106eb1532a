// Package mq предоставляет инфраструктуру RabbitMQ для Artflow.
//
// Структура:
//   - connection.go: соединение с автоматическим переподключением
//   - topology.go:   exchanges, queues, bindings
//   - publisher.go:  публикация событий
//   - consumer.go:   потребление очередей с ack/nack
//
// Типы сообщений:
//   - run.pending:   новый run ждёт воркера
//   - output.status: изменился статус Output-узла
//   - run.finished:  run завершён
package mq
