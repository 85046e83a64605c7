// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountkeeper_operations_total",
			Help: "Identity operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accountkeeper_operation_duration_seconds",
			Help:    "Duration of identity operations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	OutboxDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountkeeper_outbox_dispatched_total",
			Help: "Outbox records handed to the event bus, by kind and result",
		},
		[]string{"kind", "result"},
	)

	ProjectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountkeeper_projected_events_total",
			Help: "Events handled by projectors, by projector, kind and result",
		},
		[]string{"projector", "kind", "result"},
	)
)

// Outcome maps an operation error onto a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrValidation):
		return "invalid"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return "unauthorized"
	case errors.Is(err, common.ErrForbidden):
		return "forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrAlreadyExists), errors.Is(err, common.ErrVersionConflict):
		return "conflict"
	default:
		return "error"
	}
}

// Result is the two-valued label used by the outbox and projector counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
