package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Metrics holds the ledger counters. A nil *Metrics records nothing.
type Metrics struct {
	settlements      *prometheus.CounterVec
	commissionPaid   prometheus.Counter
	walletOperations *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_total",
			Help: "Purchase settlements by result.",
		}, []string{"result"}),
		commissionPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_commission_amount_total",
			Help: "Sum of affiliate commissions credited by committed settlements.",
		}),
		walletOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_operation_total",
			Help: "Wallet credits and debits by transaction kind and result.",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.settlements, m.commissionPaid, m.walletOperations} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveSettlement(result string, commission decimal.Decimal) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.commissionPaid.Add(commission.InexactFloat64())
	}
}

func (m *Metrics) ObserveWalletOperation(kind, result string) {
	if m == nil {
		return
	}
	m.walletOperations.WithLabelValues(kind, result).Inc()
}
