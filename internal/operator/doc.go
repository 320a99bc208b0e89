// Package operator содержит step operator "queue": выполнение шагов
// на отдельных процессах conduit-operator через RabbitMQ.
//
// Файлы:
//   - queue.go — QueueOperator: запрос в steps.launch и ожидание ответа
//
// Сторона, выполняющая entrypoint, живёт в пакете worker.
package operator
