package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts the settlement pipeline outcomes we alert on.
type SettlementMetrics struct {
	ordersPlaced      *prometheus.CounterVec
	ordersPaid        *prometheus.CounterVec
	paymentsDeclined  *prometheus.CounterVec
	reservationsSwept prometheus.Counter
	refundsIssued     *prometheus.CounterVec
	reconciliations   prometheus.Counter
}

// NewSettlementMetrics registers the settlement counters on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders that entered pending_payment, by payment method.",
	}, []string{"method"})
	ordersPaid := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Orders confirmed paid, by payment method.",
	}, []string{"method"})
	paymentsDeclined := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_declined_total",
		Help: "Payment attempts that ended declined or expired, by gateway.",
	}, []string{"gateway"})
	reservationsSwept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservations_swept_total",
		Help: "Expired reservations released by the sweeper.",
	})
	refundsIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_issued_total",
		Help: "Refunds submitted to a gateway, by outcome.",
	}, []string{"status"})
	reconciliations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_needing_reconciliation_total",
		Help: "Orders flagged for manual reconciliation.",
	})
	reg.MustRegister(ordersPlaced, ordersPaid, paymentsDeclined, reservationsSwept, refundsIssued, reconciliations)
	return &SettlementMetrics{
		ordersPlaced:      ordersPlaced,
		ordersPaid:        ordersPaid,
		paymentsDeclined:  paymentsDeclined,
		reservationsSwept: reservationsSwept,
		refundsIssued:     refundsIssued,
		reconciliations:   reconciliations,
	}
}

// IncOrderPlaced counts an order entering pending_payment.
func (s *SettlementMetrics) IncOrderPlaced(method string) {
	if s == nil || s.ordersPlaced == nil {
		return
	}
	s.ordersPlaced.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncOrderPaid counts a confirmed payment.
func (s *SettlementMetrics) IncOrderPaid(method string) {
	if s == nil || s.ordersPaid == nil {
		return
	}
	s.ordersPaid.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncPaymentDeclined counts a declined or expired attempt.
func (s *SettlementMetrics) IncPaymentDeclined(gateway string) {
	if s == nil || s.paymentsDeclined == nil {
		return
	}
	s.paymentsDeclined.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// AddReservationsSwept counts reservations released by the sweeper.
func (s *SettlementMetrics) AddReservationsSwept(n int) {
	if s == nil || s.reservationsSwept == nil || n <= 0 {
		return
	}
	s.reservationsSwept.Add(float64(n))
}

// IncRefundIssued counts a refund submission by outcome status.
func (s *SettlementMetrics) IncRefundIssued(status string) {
	if s == nil || s.refundsIssued == nil {
		return
	}
	s.refundsIssued.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncReconciliationNeeded counts an order flagged for manual review.
func (s *SettlementMetrics) IncReconciliationNeeded() {
	if s == nil || s.reconciliations == nil {
		return
	}
	s.reconciliations.Inc()
}
