package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cartaporte"

var (
	Validations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "validations_total", Help: "Pre-stamping validations by outcome."},
		[]string{"outcome"},
	)
	StampAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "stamp_attempts_total", Help: "Stamping pipeline runs by outcome and environment."},
		[]string{"outcome", "environment"},
	)
	PACRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "pac_request_duration_seconds", Help: "PAC HTTP request latency.", Buckets: prometheus.DefBuckets},
		[]string{"operation", "status"},
	)
	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "pac_circuit_state", Help: "PAC circuit breaker state: 0 closed, 1 half-open, 2 open."},
		[]string{"provider"},
	)
	PostalCodeCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "postal_code_cache_total", Help: "Postal code cache lookups by result."},
		[]string{"result"},
	)
)

// RegisterCollectors registers the service collectors plus the Go and process
// collectors on reg. Collectors already registered are left alone.
func RegisterCollectors(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		Validations,
		StampAttempts,
		PACRequestDuration,
		CircuitState,
		PostalCodeCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler exposes the collectors registered on reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
