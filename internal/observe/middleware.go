package observe

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// RunIDHeader carries the batch run ID on every metrics/health response.
const RunIDHeader = "X-Run-ID"

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the metrics and health routes. Each request runs
// in a server span that continues incoming W3C trace context, carries the
// run ID from the request context in [RunIDHeader], and is timed into
// [Metrics.HTTPRequestDuration] under its mux route pattern. Unmatched
// paths share the "unmatched" route so scanners cannot blow up cardinality.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			if id := RunID(ctx); id != "" {
				w.Header().Set(RunIDHeader, id)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			req := r.WithContext(ctx)
			next.ServeHTTP(sw, req)

			// The mux records the matched pattern on the request it was given.
			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}
			span.SetAttributes(
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(sw.code),
			)
			m.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
				Attr("route", route),
				Attr("code", strconv.Itoa(sw.code)),
			))
			Logger(ctx).Debug("observe: probe served", "route", route, "status", sw.code, "elapsed", time.Since(start))
		})
	}
}
