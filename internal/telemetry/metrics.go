package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	branchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artflow_branches_total",
		Help: "Output branches executed, by final status",
	}, []string{"status"})

	backendCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artflow_backend_calls_total",
		Help: "Calls to image generation backends, by family and outcome",
	}, []string{"family", "outcome"})

	backendCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "artflow_backend_call_duration_seconds",
		Help:    "Duration of a single image generation backend call",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"family"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artflow_runs_total",
		Help: "Finished runs, by final status",
	}, []string{"status"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artflow_http_requests_total",
		Help: "HTTP requests handled by the API, by method and status code",
	}, []string{"method", "code"})
)

// ObserveBranch учитывает завершённую ветку.
func ObserveBranch(status string) {
	branchesTotal.WithLabelValues(status).Inc()
}

// ObserveBackendCall учитывает вызов бэкенда генерации.
func ObserveBackendCall(family string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	backendCallsTotal.WithLabelValues(family, outcome).Inc()
	backendCallDuration.WithLabelValues(family).Observe(time.Since(started).Seconds())
}

// ObserveRun учитывает завершённый run.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest учитывает обработанный HTTP запрос.
func ObserveHTTPRequest(method, code string) {
	httpRequestsTotal.WithLabelValues(method, code).Inc()
}
