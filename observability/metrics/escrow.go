package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowMetrics tracks the escrow lifecycle and the transactions driving it.
type EscrowMetrics struct {
	transactions *prometheus.CounterVec
	funded       prometheus.Counter
	released     prometheus.Counter
	fundedValue  prometheus.Counter
	hostPayout   prometheus.Counter
	platformFees prometheus.Counter
	failures     *prometheus.CounterVec
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the process-wide escrow metrics registry.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stay_transactions_total",
				Help: "Count of applied transactions by type and outcome.",
			}, []string{"type", "outcome"}),
			funded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stay_escrow_funded_total",
				Help: "Number of escrows funded.",
			}),
			released: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stay_escrow_released_total",
				Help: "Number of escrows released to hosts.",
			}),
			fundedValue: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stay_escrow_funded_amount_total",
				Help: "Sum of base units moved into escrow.",
			}),
			hostPayout: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stay_escrow_host_received_total",
				Help: "Sum of base units credited to hosts on release.",
			}),
			platformFees: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stay_escrow_platform_fee_total",
				Help: "Sum of platform fees recorded on funded escrows.",
			}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stay_escrow_failures_total",
				Help: "Escrow operation failures by operation and error kind.",
			}, []string{"operation", "kind"}),
		}
		prometheus.MustRegister(
			escrowRegistry.transactions,
			escrowRegistry.funded,
			escrowRegistry.released,
			escrowRegistry.fundedValue,
			escrowRegistry.hostPayout,
			escrowRegistry.platformFees,
			escrowRegistry.failures,
		)
	})
	return escrowRegistry
}

// ObserveTransaction counts one applied or rejected transaction.
func (m *EscrowMetrics) ObserveTransaction(txType string, ok bool) {
	if m == nil {
		return
	}
	if txType == "" {
		txType = "unknown"
	}
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	m.transactions.WithLabelValues(txType, outcome).Inc()
}

func (m *EscrowMetrics) ObserveFunded(amount, platformFee uint64) {
	if m == nil {
		return
	}
	m.funded.Inc()
	m.fundedValue.Add(float64(amount))
	m.platformFees.Add(float64(platformFee))
}

func (m *EscrowMetrics) ObserveReleased(received uint64) {
	if m == nil {
		return
	}
	m.released.Inc()
	m.hostPayout.Add(float64(received))
}

// ObserveFailure counts a failed fund or release by error kind.
func (m *EscrowMetrics) ObserveFailure(operation, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "internal"
	}
	m.failures.WithLabelValues(operation, kind).Inc()
}

// Collectors exposed for tests.
func (m *EscrowMetrics) Transactions() *prometheus.CounterVec { return m.transactions }
func (m *EscrowMetrics) Failures() *prometheus.CounterVec     { return m.failures }
func (m *EscrowMetrics) Released() prometheus.Counter         { return m.released }
