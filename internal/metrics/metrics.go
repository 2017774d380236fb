// Package metrics содержит Prometheus метрики бота.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Режимы выполнения запроса
const (
	ModeInteractive = "interactive"
	ModePush        = "push"
)

// Результаты
const (
	ResultSuccess   = "success"
	ResultNoData    = "no_data"
	ResultError     = "error"
	ResultAborted   = "aborted"
	ResultCancelled = "cancelled"
)

// ============ Telegram ============

// UpdatesTotal - полученные обновления по виду
var UpdatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "snapbot",
		Name:      "telegram_updates_total",
		Help:      "Number of received Telegram updates",
	},
	[]string{"kind"}, // message, callback
)

// ============ Диалоги ============

// FlowStarted - начатые диалоги по типу
var FlowStarted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "snapbot",
		Name:      "flow_started_total",
		Help:      "Number of started conversational flows",
	},
	[]string{"flow"},
)

// FlowFinished - завершенные диалоги по результату
var FlowFinished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "snapbot",
		Name:      "flow_finished_total",
		Help:      "Number of finished conversational flows",
	},
	[]string{"flow", "result"}, // result: success, error, aborted, cancelled
)

// ============ Запросы ============

// QueriesTotal - выполненные запросы к бирже с выгрузкой
var QueriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "snapbot",
		Name:      "queries_total",
		Help:      "Number of executed export queries",
	},
	[]string{"query", "mode", "result"},
)

// QueryDuration - время выполнения запроса вместе с записью файла
var QueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "snapbot",
		Name:      "query_duration_seconds",
		Help:      "Time to fetch data and write the spreadsheet",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"query"},
)

// ============ Расписание ============

// ScheduledJobs - количество взведенных таймеров
var ScheduledJobs = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "snapbot",
		Name:      "scheduled_jobs",
		Help:      "Number of armed daily jobs",
	},
)

// JobRuns - срабатывания заданий по расписанию
var JobRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "snapbot",
		Name:      "job_runs_total",
		Help:      "Number of scheduled job runs",
	},
	[]string{"query", "result"},
)

// ============ Биржа ============

// ExchangeRequests - HTTP запросы к бирже по endpoint и статусу
var ExchangeRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "snapbot",
		Subsystem: "exchange",
		Name:      "requests_total",
		Help:      "Number of exchange REST requests",
	},
	[]string{"endpoint", "status"},
)

// ============ Вспомогательные функции ============

// RecordQuery записывает результат и длительность запроса
func RecordQuery(query, mode, result string, elapsed time.Duration) {
	QueriesTotal.WithLabelValues(query, mode, result).Inc()
	QueryDuration.WithLabelValues(query).Observe(elapsed.Seconds())
}

// RecordUpdate записывает полученное обновление
func RecordUpdate(kind string) {
	UpdatesTotal.WithLabelValues(kind).Inc()
}

// RecordFlowStarted записывает начало диалога
func RecordFlowStarted(flow string) {
	FlowStarted.WithLabelValues(flow).Inc()
}

// RecordFlowFinished записывает завершение диалога
func RecordFlowFinished(flow, result string) {
	FlowFinished.WithLabelValues(flow, result).Inc()
}

// RecordJobRun записывает срабатывание задания
func RecordJobRun(query, result string) {
	JobRuns.WithLabelValues(query, result).Inc()
}

// RecordExchangeRequest записывает запрос к бирже
func RecordExchangeRequest(endpoint, status string) {
	ExchangeRequests.WithLabelValues(endpoint, status).Inc()
}

// SetScheduledJobs обновляет количество взведенных таймеров
func SetScheduledJobs(n int) {
	ScheduledJobs.Set(float64(n))
}
