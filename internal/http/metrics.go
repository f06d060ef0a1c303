package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_payments_recorded_total",
		Help: "Number of liability payments committed.",
	})
	paymentLegsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_payment_legs_failed_total",
		Help: "Number of lump-payment legs that failed to commit.",
	})
	transfersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_transfers_rejected_total",
		Help: "Number of bucket transfers rejected by validation.",
	})
	schedulesRegenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_schedules_regenerated_total",
		Help: "Number of schedule tail regenerations.",
	})
	liabilitiesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_liabilities_settled_total",
		Help: "Number of liabilities settled and soft-deleted.",
	})
)
