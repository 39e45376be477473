// Package metrics defines Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StockInTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_in_total",
		Help: "Total number of committed stock-in operations",
	}, []string{"movement_type"})

	StockOutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_out_total",
		Help: "Total number of committed stock-out operations",
	}, []string{"movement_type"})

	StockOutInsufficientTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_stock_out_insufficient_total",
		Help: "Total number of stock-out requests rejected for insufficient stock",
	})

	LowStockSignalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_low_stock_signals_total",
		Help: "Total number of low-stock signals emitted",
	})

	TransactionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_transaction_duration_seconds",
		Help:    "Duration of inventory database transactions",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
