package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PricingMetrics counts sync outcomes and sale restorations.
type PricingMetrics struct {
	products   *prometheus.CounterVec
	fxFailures prometheus.Counter
	restored   prometheus.Counter
}

// NewPricingMetrics registers the pricing metrics on the provided registerer.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	products := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricesync_products_total",
		Help: "Products processed by price sync, by outcome.",
	}, []string{"status"})
	fxFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricesync_fx_failures_total",
		Help: "Sync runs aborted because the FX snapshot was unavailable.",
	})
	restored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sale_expiry_restored_total",
		Help: "Products restored to their regular price after a sale ended.",
	})
	reg.MustRegister(products, fxFailures, restored)
	return &PricingMetrics{
		products:   products,
		fxFailures: fxFailures,
		restored:   restored,
	}
}

// IncProduct increments the per-product outcome counter.
func (m *PricingMetrics) IncProduct(status string) {
	if m == nil || m.products == nil {
		return
	}
	m.products.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *PricingMetrics) IncFXFailure() {
	if m == nil || m.fxFailures == nil {
		return
	}
	m.fxFailures.Inc()
}

func (m *PricingMetrics) IncRestored() {
	if m == nil || m.restored == nil {
		return
	}
	m.restored.Inc()
}
