// Package metrics holds the Prometheus collectors for user provisioning and
// promotion validation. Collectors register with the default registry, which
// the server exposes on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess      = "success"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
	OutcomeRolledBack   = "rolled_back"
	OutcomeInconsistent = "inconsistent"
)

var (
	// ProvisioningOperations counts CreateUser/RemoveUser calls by outcome.
	ProvisioningOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_provisioning_operations_total",
			Help: "User provisioning operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ProvisioningCompensations counts compensating credential removals.
	ProvisioningCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_provisioning_compensations_total",
			Help: "Compensating credential removals by outcome",
		},
		[]string{"outcome"},
	)

	// ProvisioningDuration tracks the latency of provisioning operations
	ProvisioningDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "storefront_provisioning_duration_seconds",
			Help: "Duration of user provisioning operations in seconds",
			Buckets: []float64{
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
			},
		},
		[]string{"operation"},
	)

	// PromotionRejections counts promotions refused by the pricing rules.
	PromotionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_promotion_rejections_total",
			Help: "Promotion create/edit requests rejected by validation, by reason",
		},
		[]string{"reason"},
	)
)

// RecordProvisioning records one finished provisioning operation.
func RecordProvisioning(operation, outcome string, seconds float64) {
	ProvisioningOperations.WithLabelValues(operation, outcome).Inc()
	ProvisioningDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordCompensation records the result of a compensating credential removal.
func RecordCompensation(outcome string) {
	ProvisioningCompensations.WithLabelValues(outcome).Inc()
}

// RecordPromotionRejection records a rejected promotion.
func RecordPromotionRejection(reason string) {
	PromotionRejections.WithLabelValues(reason).Inc()
}
