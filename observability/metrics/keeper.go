package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// KeeperMetrics tracks the release keeper's polling loop.
type KeeperMetrics struct {
	polls       *prometheus.CounterVec
	submissions *prometheus.CounterVec
	pending     prometheus.Gauge
	cursor      prometheus.Gauge
}

var (
	keeperOnce     sync.Once
	keeperRegistry *KeeperMetrics
)

func Keeper() *KeeperMetrics {
	keeperOnce.Do(func() {
		keeperRegistry = &KeeperMetrics{
			polls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "releasekeeper_polls_total",
				Help: "Event log polls by outcome.",
			}, []string{"outcome"}),
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "releasekeeper_submissions_total",
				Help: "ReleaseEscrow submissions by outcome.",
			}, []string{"outcome"}),
			pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "releasekeeper_pending_escrows",
				Help: "Funded escrows awaiting release.",
			}),
			cursor: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "releasekeeper_event_cursor",
				Help: "Last processed event log sequence.",
			}),
		}
		prometheus.MustRegister(
			keeperRegistry.polls,
			keeperRegistry.submissions,
			keeperRegistry.pending,
			keeperRegistry.cursor,
		)
	})
	return keeperRegistry
}

func (m *KeeperMetrics) ObservePoll(err error) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(outcomeLabel(err)).Inc()
}

// ObserveSubmission counts a release attempt. outcome is "released",
// "already_settled", "not_due" or "error".
func (m *KeeperMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *KeeperMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *KeeperMetrics) SetCursor(seq int64) {
	if m == nil {
		return
	}
	m.cursor.Set(float64(seq))
}

func (m *KeeperMetrics) Submissions() *prometheus.CounterVec { return m.submissions }

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
