// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers        prometheus.Gauge
	WorldItems           prometheus.Gauge
	MessagesReceived     *prometheus.CounterVec
	MessageLatency       *prometheus.HistogramVec
	ActionsRejected      *prometheus.CounterVec
	CollectionsCompleted prometheus.Counter
	ItemsSpawned         prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of online players",
		}),
		WorldItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_items",
			Help:      "Number of items lying in the world",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}, []string{"type"}),
		MessageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Time from frame receipt to the end of its handling",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"type"}),
		ActionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_rejected_total",
			Help:      "Requests rejected before mutating state",
		}, []string{"reason"}),
		CollectionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collections_completed_total",
			Help:      "Timed pickups that completed",
		}),
		ItemsSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_spawned_total",
			Help:      "Items placed into the world by the spawn cycle or by drops",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.OnlinePlayers,
		m.WorldItems,
		m.MessagesReceived,
		m.MessageLatency,
		m.ActionsRejected,
		m.CollectionsCompleted,
		m.ItemsSpawned,
	}
}

// Monitor 运行指标。A nil *Monitor is valid and records nothing.
type Monitor struct {
	metrics      *Metrics
	gatherer     prometheus.Gatherer
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

// NewMonitor registers the metrics on reg. A nil reg means the process-wide
// default registry.
func NewMonitor(namespace string, reg prometheus.Registerer) (*Monitor, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		gatherer:  prometheus.DefaultGatherer,
		startTime: time.Now(),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	for _, c := range m.metrics.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Metrics exposes the underlying collectors.
func (m *Monitor) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// Handler serves the registered metrics in the prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Publish exposes uptime and request count through expvar (/debug/vars).
func (m *Monitor) Publish() {
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))
	expvar.Publish("requests", expvar.Func(func() interface{} {
		return m.RequestCount()
	}))
}

func (m *Monitor) RequestCount() int64 {
	if m == nil {
		return 0
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requestCount
}

func (m *Monitor) SetOnlinePlayers(n int) {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Set(float64(n))
}

func (m *Monitor) SetWorldItems(n int) {
	if m == nil {
		return
	}
	m.metrics.WorldItems.Set(float64(n))
}

func (m *Monitor) IncMessagesReceived(msgType string) {
	if m == nil {
		return
	}
	m.metrics.MessagesReceived.WithLabelValues(msgType).Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveMessageLatency(msgType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.MessageLatency.WithLabelValues(msgType).Observe(duration.Seconds())
}

func (m *Monitor) IncActionsRejected(reason string) {
	if m == nil {
		return
	}
	m.metrics.ActionsRejected.WithLabelValues(reason).Inc()
}

func (m *Monitor) IncCollectionsCompleted() {
	if m == nil {
		return
	}
	m.metrics.CollectionsCompleted.Inc()
}

func (m *Monitor) IncItemsSpawned() {
	if m == nil {
		return
	}
	m.metrics.ItemsSpawned.Inc()
}
