package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StatusWriter wraps an http.ResponseWriter so middleware higher in the
// stack can read the status code and body size once the handler returns.
type StatusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

// WrapWriter returns a StatusWriter that reports 200 until a header is written.
func WrapWriter(w http.ResponseWriter) *StatusWriter {
	return &StatusWriter{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader captures the status code before delegating.
func (sw *StatusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Write accumulates the number of body bytes sent.
func (sw *StatusWriter) Write(p []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(p)
	sw.bytes += int64(n)
	return n, err
}

// Status returns the response status code.
func (sw *StatusWriter) Status() int { return sw.status }

// BytesWritten returns the number of body bytes sent to the client.
func (sw *StatusWriter) BytesWritten() int64 { return sw.bytes }

// requestRoute resolves the matched chi pattern for a request. Metric and
// span labels use the pattern rather than the raw path so cardinality stays
// bounded when clients probe arbitrary URLs.
func requestRoute(r *http.Request, fallback string) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return fallback
}

// HTTPObs instruments the request lifecycle with the storefront's HTTP metrics.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

// Middleware counts requests, tracks in-flight load, and observes latency
// per method and route.
func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	if o.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := WrapWriter(w)
		o.Metrics.InFlight.Inc()
		start := time.Now()
		next.ServeHTTP(sw, r)
		o.Metrics.InFlight.Dec()

		route := requestRoute(r, "unknown")
		status := strconv.Itoa(sw.Status())
		o.Metrics.ReqTotal.WithLabelValues(r.Method, route, status).Inc()
		o.Metrics.ReqDur.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(start)))
	})
}

// RoutePatternMiddleware records the matched route pattern on the request
// context for the logger, metrics, and tracing middlewares downstream.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if rc := chi.RouteContext(ctx); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				ctx = WithRoutePattern(ctx, pattern)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TracingMiddleware opens a server span per request. Catalog fetches and
// session handlers pick the span up through the request context.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("storefront.http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := requestRoute(r, r.URL.Path)
		ctx, span := tracer.Start(r.Context(), r.Method+" "+route)
		sw := WrapWriter(w)
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.Int("http.status_code", sw.Status()),
		)
		if sw.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.Status()))
		}
		span.End()
	})
}
