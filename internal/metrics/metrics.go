package metrics

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "token_bridge"

// Metrics holds the bridge and relay collectors. A nil *Metrics records nothing.
type Metrics struct {
	Deposits          *prometheus.CounterVec
	DepositedAmount   *prometheus.CounterVec
	Withdrawals       *prometheus.CounterVec
	WithdrawnAmount   *prometheus.CounterVec
	CancelRequests    *prometheus.CounterVec
	Reclaims          *prometheus.CounterVec
	LimiterRejections *prometheus.CounterVec
	BridgeBalance     *prometheus.GaugeVec

	RelayDelivered  *prometheus.CounterVec
	RelayFailed     *prometheus.CounterVec
	RelayDuplicates *prometheus.CounterVec
}

// New registers the collectors on reg under namespace ns.
func New(reg prometheus.Registerer, ns string) *Metrics {
	if ns == "" {
		ns = Namespace
	}
	factory := promauto.With(reg)
	byToken := []string{"token"}
	byDirection := []string{"direction"}

	return &Metrics{
		Deposits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deposits_total",
			Help:      "Count of successful deposits",
		}, byToken),
		DepositedAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deposited_amount_total",
			Help:      "Sum of deposited amounts in base units",
		}, byToken),
		Withdrawals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "withdrawals_total",
			Help:      "Count of successful withdrawals",
		}, byToken),
		WithdrawnAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "withdrawn_amount_total",
			Help:      "Sum of withdrawn amounts in base units",
		}, byToken),
		CancelRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deposit_cancel_requests_total",
			Help:      "Count of deposit cancellation requests",
		}, byToken),
		Reclaims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deposit_reclaims_total",
			Help:      "Count of reclaimed deposits",
		}, byToken),
		LimiterRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "withdrawal_limit_rejections_total",
			Help:      "Count of withdrawals rejected by the daily limit",
		}, byToken),
		BridgeBalance: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "bridge_balance",
			Help:      "Tracked bridge balance per token",
		}, byToken),

		RelayDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "relay",
			Name:      "delivered_total",
			Help:      "Messages delivered by the relay",
		}, byDirection),
		RelayFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "relay",
			Name:      "failed_total",
			Help:      "Messages the relay could not deliver",
		}, byDirection),
		RelayDuplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "relay",
			Name:      "duplicates_total",
			Help:      "Redelivered envelopes dropped by the relay",
		}, byDirection),
	}
}

func (m *Metrics) RecordDeposit(token common.Address, amount, balance *uint256.Int) {
	if m == nil {
		return
	}
	m.Deposits.WithLabelValues(token.Hex()).Inc()
	m.DepositedAmount.WithLabelValues(token.Hex()).Add(amount.Float64())
	m.BridgeBalance.WithLabelValues(token.Hex()).Set(balance.Float64())
}

func (m *Metrics) RecordWithdrawal(token common.Address, amount, balance *uint256.Int) {
	if m == nil {
		return
	}
	m.Withdrawals.WithLabelValues(token.Hex()).Inc()
	m.WithdrawnAmount.WithLabelValues(token.Hex()).Add(amount.Float64())
	m.BridgeBalance.WithLabelValues(token.Hex()).Set(balance.Float64())
}

func (m *Metrics) RecordCancelRequest(token common.Address) {
	if m == nil {
		return
	}
	m.CancelRequests.WithLabelValues(token.Hex()).Inc()
}

func (m *Metrics) RecordReclaim(token common.Address, balance *uint256.Int) {
	if m == nil {
		return
	}
	m.Reclaims.WithLabelValues(token.Hex()).Inc()
	m.BridgeBalance.WithLabelValues(token.Hex()).Set(balance.Float64())
}

func (m *Metrics) RecordLimiterRejection(token common.Address) {
	if m == nil {
		return
	}
	m.LimiterRejections.WithLabelValues(token.Hex()).Inc()
}

func (m *Metrics) RecordRelay(direction string, delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.RelayDelivered.WithLabelValues(direction).Inc()
		return
	}
	m.RelayFailed.WithLabelValues(direction).Inc()
}

func (m *Metrics) RecordDuplicate(direction string) {
	if m == nil {
		return
	}
	m.RelayDuplicates.WithLabelValues(direction).Inc()
}
