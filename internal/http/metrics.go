package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Negocio
	issuanceDecisionsTotal *prometheus.CounterVec
	federationFlowsTotal   *prometheus.CounterVec
)

// RegisterMetrics inicializa las métricas y devuelve el handler para /metrics.
// Es idempotente: registrar dos veces no falla.
func RegisterMetrics(registry prometheus.Registerer) http.Handler {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		issuanceDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbooth_issuance_decisions_total",
			Help: "Decisiones de la política de frescura (reuse|refresh|mint)",
		}, []string{"decision"})

		federationFlowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbooth_federation_flows_total",
			Help: "Flujos de federación por resultado (started|completed|failed)",
		}, []string{"result"})

		registry.MustRegister(httpRequestsTotal, httpRequestDuration,
			issuanceDecisionsTotal, federationFlowsTotal)
	})

	return promhttp.Handler()
}

// ObserveIssuanceDecision cuenta una decisión de emisión.
func ObserveIssuanceDecision(decision string) {
	if issuanceDecisionsTotal != nil {
		issuanceDecisionsTotal.WithLabelValues(decision).Inc()
	}
}

// ObserveFederationFlow cuenta un evento del flujo de federación.
func ObserveFederationFlow(result string) {
	if federationFlowsTotal != nil {
		federationFlowsTotal.WithLabelValues(result).Inc()
	}
}

// WithMetrics instrumenta cada request con contador y latencia.
func WithMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if httpRequestsTotal == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &metricsRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}

type metricsRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (m *metricsRecorder) WriteHeader(code int) {
	if m.wrote {
		return
	}
	m.status = code
	m.wrote = true
	m.ResponseWriter.WriteHeader(code)
}

func (m *metricsRecorder) Write(b []byte) (int, error) {
	if !m.wrote {
		m.status = http.StatusOK
		m.wrote = true
	}
	return m.ResponseWriter.Write(b)
}
