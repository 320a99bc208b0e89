// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Используется step operator'ом "queue": launcher публикует запрос на
// выполнение entrypoint шага, conduit-operator выполняет его и отвечает
// в reply-очередь launcher'а.
//
// Структура:
//   - connection.go — именованное соединение (conduit-launcher, conduit-operator) с reconnect и метриками
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация запросов и ответов
//   - consumer.go   — потребление с параллельной обработкой до Prefetch, retry и DLQ
//
// Типы сообщений:
//   - step.launch — выполнить entrypoint шага
//   - step.result — результат выполнения (в reply-очередь)
//
// Exchanges:
//   - conduit.steps — запросы на выполнение шагов
//   - conduit.dlq   — dead letter queue
package mq
