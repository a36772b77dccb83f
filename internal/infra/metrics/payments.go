package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	paymentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_payments_total",
		Help: "Payment initiations by result.",
	}, []string{"status"})

	paymentAmountTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_payment_amount_total",
		Help: "Total amount across initiated transfer transactions.",
	})

	settlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_settlements_total",
		Help: "Settlement watcher terminal outcomes.",
	}, []string{"outcome"})

	voucherChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_voucher_checks_total",
		Help: "Voucher verification calls by result.",
	}, []string{"result"})

	orgLookupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_org_lookups_total",
		Help: "Organization search round trips against the billing backend.",
	})
)

func init() {
	register(paymentsTotal, paymentAmountTotal, settlementsTotal, voucherChecksTotal, orgLookupsTotal)
}

// IncPayment counts an initiation attempt by status ("initiated", "failed", "purchased").
func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

// AddPaymentAmount adds the amount of a successfully initiated transfer.
func AddPaymentAmount(amount int64) {
	if amount > 0 {
		paymentAmountTotal.Add(float64(amount))
	}
}

// IncSettlement counts a terminal settlement outcome ("succeeded", "failed", "not_found").
func IncSettlement(outcome string) {
	settlementsTotal.WithLabelValues(norm(outcome)).Inc()
}

// IncVoucherCheck counts a verification round trip ("valid", "invalid", "error").
func IncVoucherCheck(result string) {
	voucherChecksTotal.WithLabelValues(norm(result)).Inc()
}

// IncOrgLookup counts one organization search request.
func IncOrgLookup() {
	orgLookupsTotal.Inc()
}
