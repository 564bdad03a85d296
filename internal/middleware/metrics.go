package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"crmapi/internal/metrics"
)

// Metrics records the request duration histogram labeled by method and
// route template.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		metrics.RequestDurationHistogram.
			WithLabelValues(r.Method, path).
			Observe(time.Since(start).Seconds())
	})
}
