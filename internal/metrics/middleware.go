package metrics

import (
	"net/http"
	"time"
)

// statusRecorder captures the status code written by a handler. A handler
// that never calls WriteHeader implicitly wrote 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware records request count, duration, and in-flight gauge for
// every request. The path label uses the matched route pattern when one
// exists, so run ids in the URL do not explode label cardinality.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			start := time.Now()

			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)

			reg.InFlightDec()

			path := r.Pattern
			if path == "" {
				path = r.URL.Path
			}
			reg.RecordRequest(r.Method, path, sr.status, time.Since(start).Seconds())
		})
	}
}
