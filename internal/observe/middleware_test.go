package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// instrumentedMux returns a mux with a few routes behind Middleware, plus
// the recorders for its metrics and spans. It swaps the global tracer
// provider, so callers must not run in parallel.
func instrumentedMux(t *testing.T) (http.Handler, func() metricdata.ResourceMetrics, *tracetest.InMemoryExporter) {
	t.Helper()

	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /meetings/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return Middleware(m)(mux), func() metricdata.ResourceMetrics { return collect(t, reader) }, exp
}

func serve(h http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// durationPoint returns the request-duration data point whose route
// attribute equals route.
func durationPoint(t *testing.T, rm metricdata.ResourceMetrics, route string) *metricdata.HistogramDataPoint[float64] {
	t.Helper()
	met := findMetric(rm, "scribe.http.request.duration")
	if met == nil {
		t.Fatal("scribe.http.request.duration not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration metric has type %T", met.Data)
	}
	for i, dp := range hist.DataPoints {
		if v, ok := dp.Attributes.Value("route"); ok && v.AsString() == route {
			return &hist.DataPoints[i]
		}
	}
	return nil
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	h, metrics, _ := instrumentedMux(t)

	serve(h, "/meetings/1", nil)
	serve(h, "/meetings/2", nil)
	serve(h, "/nope", nil)

	rm := metrics()
	dp := durationPoint(t, rm, "GET /meetings/{id}")
	if dp == nil {
		t.Fatal("no data point for the meetings route")
	}
	if dp.Count != 2 {
		t.Errorf("meetings route count = %d, want 2", dp.Count)
	}
	if v, _ := dp.Attributes.Value("status_class"); v.AsString() != "2xx" {
		t.Errorf("status_class = %q, want 2xx", v.AsString())
	}

	nf := durationPoint(t, rm, unmatchedRoute)
	if nf == nil {
		t.Fatal("no data point for unmatched requests")
	}
	if v, _ := nf.Attributes.Value("status_class"); v.AsString() != "4xx" {
		t.Errorf("unmatched status_class = %q, want 4xx", v.AsString())
	}
}

func TestMiddleware_SpanCarriesRouteAndStatus(t *testing.T) {
	h, _, exp := instrumentedMux(t)

	serve(h, "/meetings/broken", nil)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name != "HTTP GET /meetings/{id}" {
		t.Errorf("span name = %q", span.Name)
	}
	want := map[attribute.Key]bool{"http.route": false, "http.response.status_code": false}
	for _, a := range span.Attributes {
		switch a.Key {
		case "http.route":
			want[a.Key] = a.Value.AsString() == "GET /meetings/{id}"
		case "http.response.status_code":
			want[a.Key] = a.Value.AsInt64() == http.StatusInternalServerError
		}
	}
	for k, ok := range want {
		if !ok {
			t.Errorf("span attribute %s missing or wrong", k)
		}
	}
}

func TestMiddleware_CorrelationID(t *testing.T) {
	h, _, _ := instrumentedMux(t)

	fresh := serve(h, "/healthz", nil)
	if cid := fresh.Header().Get("X-Correlation-ID"); len(cid) != 32 {
		t.Errorf("generated X-Correlation-ID = %q, want 32 hex chars", cid)
	}

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	continued := serve(h, "/healthz", http.Header{
		"Traceparent": {"00-" + traceID + "-00f067aa0ba902b7-01"},
	})
	if got := continued.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want incoming trace %q", got, traceID)
	}
	if tp := continued.Header().Get("Traceparent"); !strings.Contains(tp, traceID) {
		t.Errorf("traceparent not propagated: %q", tp)
	}
}

func TestMiddleware_LogLevels(t *testing.T) {
	h, _, _ := instrumentedMux(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(orig) })

	serve(h, "/healthz", nil)
	if buf.Len() != 0 {
		t.Errorf("probe logged at info: %s", buf.String())
	}

	serve(h, "/meetings/7", nil)
	if !strings.Contains(buf.String(), "level=INFO") || !strings.Contains(buf.String(), "path=/meetings/7") {
		t.Errorf("regular request not logged at info: %s", buf.String())
	}

	buf.Reset()
	serve(h, "/meetings/broken", nil)
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("server error not logged at warn: %s", buf.String())
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()
	for code, want := range map[int]string{200: "2xx", 204: "2xx", 302: "3xx", 404: "4xx", 503: "5xx"} {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
