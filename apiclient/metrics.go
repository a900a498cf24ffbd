package apiclient

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	refreshResultSuccess = "success"
	refreshResultFailed  = "failed"
	refreshResultMissing = "missing_refresh_token"
)

// Metrics holds the Prometheus collectors for backend traffic. A nil
// *Metrics records nothing.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	refreshTotal       *prometheus.CounterVec
	invalidationsTotal prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_console_api_requests_total",
			Help: "Requests sent to the backend API",
		}, []string{"method", "status"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_console_token_refresh_total",
			Help: "Access token refresh attempts by outcome",
		}, []string{"result"}),
		invalidationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_console_session_invalidations_total",
			Help: "Sessions cleared because the access token could not be refreshed",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.refreshTotal, m.invalidationsTotal)
	return m
}

func (m *Metrics) request(method string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(method, label).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) invalidation() {
	if m == nil {
		return
	}
	m.invalidationsTotal.Inc()
}
