package chatsync

import "github.com/prometheus/client_golang/prometheus"

// Metrics 同步引擎的計數器；nil 時所有方法都是 no-op
type Metrics struct {
	duplicates   prometheus.Counter
	staleDropped prometheus.Counter
	reconciled   *prometheus.CounterVec
	sendFailures prometheus.Counter
}

// NewMetrics 在 reg 上註冊計數器；reg 為 nil 時不註冊
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "duplicates_dropped_total",
			Help:      "Confirmed messages discarded because their id was already visible.",
		}),
		staleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "stale_results_dropped_total",
			Help:      "Fetch or feed results discarded because a newer epoch had started.",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "reconciled_total",
			Help:      "Pending messages matched to their confirmed counterpart, by source.",
		}, []string{"source"}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "send_failures_total",
			Help:      "Optimistic sends that ended in the failed state.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.duplicates, m.staleDropped, m.reconciled, m.sendFailures)
	}
	return m
}

func (m *Metrics) duplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

func (m *Metrics) stale() {
	if m != nil {
		m.staleDropped.Inc()
	}
}

func (m *Metrics) reconcile(source string) {
	if m != nil {
		m.reconciled.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) sendFailed() {
	if m != nil {
		m.sendFailures.Inc()
	}
}
