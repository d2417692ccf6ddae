// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий workspace
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - workspace.event — событие жизненного цикла runtime
//
// Exchanges:
//   - wsmaster.workspaces — события workspace (topic, routing key workspace.<type>)
//   - wsmaster.dlq        — dead letter queue
package mq
