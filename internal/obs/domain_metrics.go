package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart operations by kind and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// OverrideLedgerWritesTotal counts temp-override record writes by outcome.
	OverrideLedgerWritesTotal *prometheus.CounterVec
	// OverrideRevertsTotal counts live cart values reverted to the catalog.
	OverrideRevertsTotal *prometheus.CounterVec
	// GSTFallbackTotal counts tax lookups answered by a default instead of a rule.
	GSTFallbackTotal *prometheus.CounterVec
	// QuotationSubmissionsTotal counts submission outcomes.
	QuotationSubmissionsTotal *prometheus.CounterVec
	// AuditWritesTotal counts audit entry deliveries by sink and outcome.
	AuditWritesTotal *prometheus.CounterVec
	// DocumentRenderLatency records render duration in milliseconds.
	DocumentRenderLatency *prometheus.HistogramVec
	// DocumentPages records the number of pages per rendered document.
	DocumentPages prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart operations by kind and outcome.",
		}, []string{"op", "result"})
		OverrideLedgerWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "override_ledger_writes_total",
			Help:      "Count of temp-override record writes by outcome.",
		}, []string{"field", "result"})
		OverrideRevertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "override_reverts_total",
			Help:      "Count of in-cart edits reverted to the catalog value.",
		}, []string{"field"})
		GSTFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gst_fallback_total",
			Help:      "Count of GST lookups answered by a default rate.",
		}, []string{"reason"})
		QuotationSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotation_submissions_total",
			Help:      "Count of quotation submissions by mode and outcome.",
		}, []string{"mode", "result"})
		AuditWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_writes_total",
			Help:      "Count of audit entry deliveries by sink and outcome.",
		}, []string{"sink", "result"})
		DocumentRenderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_render_duration_ms",
			Help:      "Latency for document rendering in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"backend", "format", "result"})
		DocumentPages = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_pages",
			Help:      "Number of pages per rendered document.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		})

		CartMutationsTotal = register(reg, CartMutationsTotal)
		OverrideLedgerWritesTotal = register(reg, OverrideLedgerWritesTotal)
		OverrideRevertsTotal = register(reg, OverrideRevertsTotal)
		GSTFallbackTotal = register(reg, GSTFallbackTotal)
		QuotationSubmissionsTotal = register(reg, QuotationSubmissionsTotal)
		AuditWritesTotal = register(reg, AuditWritesTotal)
		DocumentRenderLatency = register(reg, DocumentRenderLatency)
		DocumentPages = register(reg, DocumentPages)
	})
}

// CountCartMutation increments the cart mutation counter when registered.
func CountCartMutation(op, result string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op, result).Inc()
	}
}

// CountLedgerWrite records a temp-override write outcome.
func CountLedgerWrite(field, result string) {
	if OverrideLedgerWritesTotal != nil {
		OverrideLedgerWritesTotal.WithLabelValues(field, result).Inc()
	}
}

// CountRevert records a live value reverted to the catalog.
func CountRevert(field string) {
	if OverrideRevertsTotal != nil {
		OverrideRevertsTotal.WithLabelValues(field).Inc()
	}
}

// CountGSTFallback records a default-rate answer from the tax resolver.
func CountGSTFallback(reason string) {
	if GSTFallbackTotal != nil {
		GSTFallbackTotal.WithLabelValues(reason).Inc()
	}
}

// CountSubmission records a quotation submission outcome.
func CountSubmission(mode, result string) {
	if QuotationSubmissionsTotal != nil {
		QuotationSubmissionsTotal.WithLabelValues(mode, result).Inc()
	}
}

// CountAuditWrite records an audit delivery outcome.
func CountAuditWrite(sink, result string) {
	if AuditWritesTotal != nil {
		AuditWritesTotal.WithLabelValues(sink, result).Inc()
	}
}

// ObserveRender records a render attempt.
func ObserveRender(backend, format, result string, took time.Duration, pages int) {
	if DocumentRenderLatency != nil {
		DocumentRenderLatency.WithLabelValues(backend, format, result).Observe(DurationMillis(took))
	}
	if DocumentPages != nil && pages > 0 {
		DocumentPages.Observe(float64(pages))
	}
}
