package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var RequestDurationHistogram = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "crm_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "path"},
)

var AuthzDenialCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crm_authz_denials_total",
		Help: "Total number of authorization denials by reason",
	},
	[]string{"reason"},
)

var MutationCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crm_mutations_total",
		Help: "Total number of successful entity mutations",
	},
	[]string{"entity", "action"},
)

func init() {
	prometheus.MustRegister(RequestDurationHistogram)
	prometheus.MustRegister(AuthzDenialCounter)
	prometheus.MustRegister(MutationCounter)
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
