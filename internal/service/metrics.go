package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stockOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furniture_stock_operations_total",
			Help: "Total number of successful ledger mutations",
		},
		[]string{"operation", "warehouse"},
	)

	stockRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furniture_stock_rejections_total",
			Help: "Total number of reservations rejected for insufficient stock",
		},
		[]string{"warehouse"},
	)

	checkoutResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furniture_checkout_total",
			Help: "Total number of allocation attempts by outcome",
		},
		[]string{"result"},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furniture_order_transitions_total",
			Help: "Total number of order status transitions",
		},
		[]string{"from", "to"},
	)

	refundsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furniture_refunds_processed_total",
			Help: "Total number of refunds processed",
		},
		[]string{"kind"},
	)

	refundedAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "furniture_refunded_centavos_total",
			Help: "Total amount refunded in centavos",
		},
	)
)
