package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	uuidPattern     = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	propertyPattern = regexp.MustCompile(`^/properties/[^/]+`)
)

// unmatchedRoute labels requests no route claimed, so scanners cannot
// inflate label cardinality.
const unmatchedRoute = "unmatched"

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routeLabel returns the route a served request matched. ServeMux records
// the pattern on the request, so it is read after the handler ran; the
// innermost mux wins. Requests served outside a mux fall back to the path
// with IDs replaced.
func routeLabel(r *http.Request) string {
	pattern := r.Pattern
	if pattern == "" {
		return normalizePath(r.URL.Path)
	}
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = pattern[i+1:]
	}
	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:] // drop host
	}
	if pattern == "/" {
		return unmatchedRoute
	}
	return pattern
}

func normalizePath(path string) string {
	path = propertyPattern.ReplaceAllString(path, "/properties/{id}")
	return uuidPattern.ReplaceAllString(path, "{id}")
}

// Middleware records request count, latency and response size per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := routeLabel(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		HTTPResponseSize.WithLabelValues(route).Observe(float64(rw.bytes))
	})
}
