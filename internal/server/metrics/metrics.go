// Package metrics Prometheus-метрики сервера синхронизации
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codesync"

// Metrics набор коллекторов сервера. Методы безопасны для nil-получателя,
// поэтому компоненты можно создавать без метрик (в тестах).
type Metrics struct {
	gatherer prometheus.Gatherer

	// Сессии и подключения
	ActiveSessions prometheus.Gauge
	SessionsTotal  prometheus.Counter
	ConnectedPeers prometheus.Gauge
	SlowConsumers  prometheus.Counter

	// Протокол
	MessagesReceived  *prometheus.CounterVec
	MessagesSent      *prometheus.CounterVec
	OperationsApplied *prometheus.CounterVec
	HandshakeDuration prometheus.Histogram

	// Awareness
	AwarenessExpired prometheus.Counter

	// Снимки
	SnapshotDuration *prometheus.HistogramVec
	SnapshotErrors   *prometheus.CounterVec

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New создает коллекторы и регистрирует их в reg.
// reg == nil использует отдельный реестр (для тестов).
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of running project coordinators",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of project coordinators started",
		}),
		ConnectedPeers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_peers",
			Help:      "Number of replicas connected to coordinators",
		}),
		SlowConsumers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumers_total",
			Help:      "Replicas disconnected because their send queue overflowed",
		}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Protocol messages received from replicas by type",
		}, []string{"type"}),
		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Protocol messages queued to replicas by type",
		}, []string{"type"}),
		OperationsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_applied_total",
			Help:      "Operations applied by coordinators by document kind",
		}, []string{"kind"}),
		HandshakeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time from hello to sync_reply",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
		AwarenessExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "awareness_expired_total",
			Help:      "Presence records removed by timeout",
		}),
		SnapshotDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Snapshot load/save duration",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		SnapshotErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_errors_total",
			Help:      "Snapshot load/save failures",
		}, []string{"operation"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status",
		}, []string{"method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler возвращает обработчик /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// SessionStarted учитывает запуск координатора
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
	m.SessionsTotal.Inc()
}

// SessionStopped учитывает остановку координатора
func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// PeerConnected учитывает подключение реплики
func (m *Metrics) PeerConnected() {
	if m == nil {
		return
	}
	m.ConnectedPeers.Inc()
}

// PeerDisconnected учитывает отключение реплики
func (m *Metrics) PeerDisconnected() {
	if m == nil {
		return
	}
	m.ConnectedPeers.Dec()
}

// SlowConsumer учитывает отключение медленной реплики
func (m *Metrics) SlowConsumer() {
	if m == nil {
		return
	}
	m.SlowConsumers.Inc()
}

// MessageReceived учитывает входящее сообщение
func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

// MessageSent учитывает сообщение, поставленное в очередь реплики
func (m *Metrics) MessageSent(msgType string) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(msgType).Inc()
}

// OperationsAppliedAdd учитывает примененные операции
func (m *Metrics) OperationsAppliedAdd(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.OperationsApplied.WithLabelValues(kind).Add(float64(n))
}

// Handshake учитывает длительность handshake
func (m *Metrics) Handshake(d time.Duration) {
	if m == nil {
		return
	}
	m.HandshakeDuration.Observe(d.Seconds())
}

// PresenceExpired учитывает удаленные по таймауту записи присутствия
func (m *Metrics) PresenceExpired(n int) {
	if m == nil || n == 0 {
		return
	}
	m.AwarenessExpired.Add(float64(n))
}

// Snapshot учитывает загрузку или сохранение снимка
func (m *Metrics) Snapshot(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SnapshotDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.SnapshotErrors.WithLabelValues(operation).Inc()
	}
}

// Request учитывает HTTP-запрос
func (m *Metrics) Request(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, http.StatusText(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}
