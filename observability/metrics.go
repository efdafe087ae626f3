package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// WalletMetrics aggregates the counters the RPC layer records for wallet
// activity.
type WalletMetrics struct {
	Requests      *prometheus.CounterVec
	Confirmations *prometheus.CounterVec
	Dispatches    *prometheus.CounterVec
	Invalidations prometheus.Counter
}

var (
	walletMetricsOnce sync.Once
	walletRegistry    *WalletMetrics
)

// Wallet returns the lazily-initialised wallet metrics registry.
func Wallet() *WalletMetrics {
	walletMetricsOnce.Do(func() {
		walletRegistry = &WalletMetrics{
			Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fyn",
				Subsystem: "wallet",
				Name:      "requests_total",
				Help:      "Total JSON-RPC wallet requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fyn",
				Subsystem: "wallet",
				Name:      "confirmations_total",
				Help:      "Confirmations and revocations recorded against pending operations.",
			}, []string{"kind"}),
			Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fyn",
				Subsystem: "wallet",
				Name:      "dispatches_total",
				Help:      "Disbursement requests segmented by path taken.",
			}, []string{"path"}),
			Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "fyn",
				Subsystem: "wallet",
				Name:      "invalidation_sweeps_total",
				Help:      "Bulk invalidations triggered by governance mutations.",
			}),
		}
		prometheus.MustRegister(
			walletRegistry.Requests,
			walletRegistry.Confirmations,
			walletRegistry.Dispatches,
			walletRegistry.Invalidations,
		)
	})
	return walletRegistry
}
