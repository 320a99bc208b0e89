package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики Conduit. Регистрируются в глобальном registry при импорте пакета
// и отдаются через promhttp.Handler() на /metrics.
var (
	// StepLaunches — количество запусков шагов по итоговому статусу.
	StepLaunches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduit_step_launches_total",
		Help: "Total step launches by final status",
	}, []string{"status"})

	// StepCacheHits — количество запусков, закрытых из кэша.
	StepCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conduit_step_cache_hits_total",
		Help: "Total step launches served from cache",
	})

	// StepDuration — продолжительность выполнения шага (без кэша).
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conduit_step_duration_seconds",
		Help:    "Duration of executed steps",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"status"})

	// HTTPRequests — количество HTTP запросов к API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduit_api_http_requests_total",
		Help: "Total HTTP requests handled by conduit API",
	}, []string{"method", "status"})

	// OperatorJobs — количество шагов, выполненных step operator worker.
	OperatorJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduit_operator_jobs_total",
		Help: "Total step entrypoint jobs executed by operator workers",
	}, []string{"status"})

	// MQConnected — 1, пока соединение с брокером живо.
	MQConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "conduit_mq_connected",
		Help: "Whether the named RabbitMQ connection is up",
	}, []string{"connection"})

	// MQReconnects — попытки восстановить соединение с брокером.
	MQReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduit_mq_reconnects_total",
		Help: "Total RabbitMQ reconnect attempts by connection name",
	}, []string{"connection"})

	// MQDeliveries — обработанные сообщения по очереди и исходу (ack, retry, dead_letter).
	MQDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduit_mq_deliveries_total",
		Help: "Total consumed RabbitMQ deliveries by queue and outcome",
	}, []string{"queue", "outcome"})
)
