package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// метрики исходящих запросов

var (
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_gateway_requests_total",
			Help: "Кол-во запросов к API ProjXchange",
		},
		[]string{"operation", "code"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entitlement_gateway_request_duration_seconds",
			Help:    "Продолжительность запросов к API ProjXchange",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// code 0 - запрос не дошел до сервера
func observe(operation string, code int, start time.Time) {
	label := "error"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	gatewayRequestsTotal.With(prometheus.Labels{"operation": operation, "code": label}).Inc()
	gatewayRequestDuration.With(prometheus.Labels{"operation": operation}).Observe(time.Since(start).Seconds())
}
