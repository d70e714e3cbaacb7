package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationTotal counts cart operations by kind and result.
	CartMutationTotal *prometheus.CounterVec
	// ListMutationTotal counts wishlist/compare operations.
	ListMutationTotal *prometheus.CounterVec
	// ReconcileTotal counts login reconciliation outcomes.
	ReconcileTotal *prometheus.CounterVec
	// DiscountRefreshTotal counts discount allocator refreshes.
	DiscountRefreshTotal prometheus.Counter
	// OrderPlacedTotal counts placed orders by result.
	OrderPlacedTotal *prometheus.CounterVec
	// CatalogFetchLatency records upstream catalog latency in milliseconds.
	CatalogFetchLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutation_total",
			Help:      "Count of cart mutations by operation and result.",
		}, []string{"op", "result"})
		ListMutationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_mutation_total",
			Help:      "Count of wishlist and compare-list mutations.",
		}, []string{"list", "op"})
		ReconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Count of login reconciliations by outcome.",
		}, []string{"outcome"})
		DiscountRefreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_refresh_total",
			Help:      "Number of discount allocator refresh runs.",
		})
		OrderPlacedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_placed_total",
			Help:      "Count of order placements by result.",
		}, []string{"result"})
		CatalogFetchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_duration_ms",
			Help:      "Latency for upstream catalog calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"op", "result"})

		mustRegisterCollector(reg, CartMutationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationTotal = v
			}
		})
		mustRegisterCollector(reg, ListMutationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ListMutationTotal = v
			}
		})
		mustRegisterCollector(reg, ReconcileTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReconcileTotal = v
			}
		})
		mustRegisterCollector(reg, DiscountRefreshTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				DiscountRefreshTotal = v
			}
		})
		mustRegisterCollector(reg, OrderPlacedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderPlacedTotal = v
			}
		})
		mustRegisterCollector(reg, CatalogFetchLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CatalogFetchLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
