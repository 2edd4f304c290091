package metrics

import "github.com/prometheus/client_golang/prometheus"

// ProcurementMetrics counts the business events of the procurement flow.
type ProcurementMetrics struct {
	requisitions prometheus.Counter
	orders       prometheus.Counter
	delivered    prometheus.Counter
	fallbacks    prometheus.Counter
	outbox       *prometheus.CounterVec
}

// NewProcurementMetrics registers the domain counters on the provided registerer.
func NewProcurementMetrics(reg prometheus.Registerer) *ProcurementMetrics {
	if reg == nil {
		return &ProcurementMetrics{}
	}
	m := &ProcurementMetrics{
		requisitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requisitions_submitted_total",
			Help:      "Requisitions accepted and split into orders.",
		}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Per-supplier orders created by the splitter.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_delivered_total",
			Help:      "Orders moved from pending to delivered.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supplier_fallbacks_total",
			Help:      "Lines routed to an alternative because the primary supplier was inactive.",
		}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox dispatch outcomes by event type.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(m.requisitions, m.orders, m.delivered, m.fallbacks, m.outbox)
	return m
}

// RequisitionSubmitted records one split requisition.
func (m *ProcurementMetrics) RequisitionSubmitted(orders, fallbacks int) {
	if m == nil || m.requisitions == nil {
		return
	}
	m.requisitions.Inc()
	m.orders.Add(float64(orders))
	m.fallbacks.Add(float64(fallbacks))
}

// OrdersDelivered records a bulk delivery acknowledgement.
func (m *ProcurementMetrics) OrdersDelivered(count int64) {
	if m == nil || m.delivered == nil || count <= 0 {
		return
	}
	m.delivered.Add(float64(count))
}

// OutboxOutcome records the result of dispatching one outbox row.
func (m *ProcurementMetrics) OutboxOutcome(eventType, outcome string) {
	if m == nil || m.outbox == nil {
		return
	}
	m.outbox.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
