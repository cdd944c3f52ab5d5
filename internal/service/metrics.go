package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics 伺服器端計數器；nil 時所有方法都是 no-op
type Metrics struct {
	messagesCreated *prometheus.CounterVec
	threadsCreated  prometheus.Counter
	feedClients     prometheus.Gauge
	feedDropped     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventchat",
			Name:      "messages_created_total",
			Help:      "Messages persisted, by channel.",
		}, []string{"channel"}),
		threadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventchat",
			Name:      "threads_created_total",
			Help:      "Private threads created lazily on first send.",
		}),
		feedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventchat",
			Name:      "feed_clients",
			Help:      "Connected live feed clients.",
		}),
		feedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventchat",
			Name:      "feed_clients_dropped_total",
			Help:      "Feed clients disconnected because their send queue was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.messagesCreated, m.threadsCreated, m.feedClients, m.feedDropped)
	}
	return m
}

func (m *Metrics) messageCreated(channel string) {
	if m != nil {
		m.messagesCreated.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) threadCreated() {
	if m != nil {
		m.threadsCreated.Inc()
	}
}

func (m *Metrics) clientConnected() {
	if m != nil {
		m.feedClients.Inc()
	}
}

func (m *Metrics) clientDisconnected() {
	if m != nil {
		m.feedClients.Dec()
	}
}

func (m *Metrics) clientDropped() {
	if m != nil {
		m.feedDropped.Inc()
	}
}
