// Package observe provides application-wide observability primitives for
// scribe: OpenTelemetry metrics, tracing, span-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and bridged to
// Prometheus by [Setup]; [Telemetry.MetricsHandler] serves them on /metrics.
// [DefaultMetrics] binds to the global meter provider for callers that run
// without a [Telemetry], such as one-shot CLI commands. Tests use
// [NewMetrics] with a ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all scribe metrics.
const meterName = "github.com/MrWong99/scribe"

// Processing outcomes recorded by [Metrics.RecordProcessed].
const (
	OutcomeSuccess     = "success"
	OutcomeDuplicate   = "duplicate"
	OutcomeInvalid     = "invalid"
	OutcomeOracle      = "oracle_error"
	OutcomePersistence = "persistence_error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// TranscriptsProcessed counts Process calls. Attribute: outcome.
	TranscriptsProcessed metric.Int64Counter

	// ProcessDuration tracks end-to-end transcript processing time.
	ProcessDuration metric.Float64Histogram

	// OracleDuration tracks extraction latency including retries.
	// Attribute: status.
	OracleDuration metric.Float64Histogram

	// UnmatchedNames counts extracted names that resolved to nothing.
	// Attribute: category.
	UnmatchedNames metric.Int64Counter

	// CreatedEntities counts projects and topics created on demand.
	// Attribute: category.
	CreatedEntities metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes.
	// Attributes: breaker, to.
	BreakerTransitions metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram

	// ChatToolCalls counts tool calls made by the chat assistant.
	// Attributes: tool, status.
	ChatToolCalls metric.Int64Counter

	// ChatToolDuration tracks chat tool latency. Attribute: tool.
	ChatToolDuration metric.Float64Histogram

	// ChatReplies counts assistant replies. Attribute: outcome.
	ChatReplies metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds sized for LLM calls,
// which routinely take tens of seconds.
var latencyBuckets = []float64{
	0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscriptsProcessed, err = m.Int64Counter("scribe.transcripts.processed",
		metric.WithDescription("Transcripts processed by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProcessDuration, err = m.Float64Histogram("scribe.process.duration",
		metric.WithDescription("End-to-end transcript processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.OracleDuration, err = m.Float64Histogram("scribe.oracle.duration",
		metric.WithDescription("Latency of structured extraction including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UnmatchedNames, err = m.Int64Counter("scribe.names.unmatched",
		metric.WithDescription("Extracted names without a canonical match by category."),
	); err != nil {
		return nil, err
	}
	if met.CreatedEntities, err = m.Int64Counter("scribe.entities.created",
		metric.WithDescription("Entities created on demand by category."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("scribe.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions by breaker and target state."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("scribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.ChatToolCalls, err = m.Int64Counter("scribe.chat.tool_calls",
		metric.WithDescription("Chat assistant tool calls by tool and status."),
	); err != nil {
		return nil, err
	}
	if met.ChatToolDuration, err = m.Float64Histogram("scribe.chat.tool.duration",
		metric.WithDescription("Chat assistant tool latency."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.ChatReplies, err = m.Int64Counter("scribe.chat.replies",
		metric.WithDescription("Chat assistant replies by outcome."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProcessed records one finished Process call.
func (m *Metrics) RecordProcessed(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.TranscriptsProcessed.Add(ctx, 1, attrs)
	m.ProcessDuration.Record(ctx, seconds, attrs)
}

// RecordOracle records one extraction. status is "ok" or an error op.
func (m *Metrics) RecordOracle(ctx context.Context, status string, seconds float64) {
	m.OracleDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordUnmatched adds n unmatched names for category. n <= 0 is ignored.
func (m *Metrics) RecordUnmatched(ctx context.Context, category string, n int) {
	if n <= 0 {
		return
	}
	m.UnmatchedNames.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("category", category)),
	)
}

// RecordCreated adds n created entities for category. n <= 0 is ignored.
func (m *Metrics) RecordCreated(ctx context.Context, category string, n int) {
	if n <= 0 {
		return
	}
	m.CreatedEntities.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("category", category)),
	)
}

// RecordBreakerTransition records a circuit breaker moving to state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("to", to),
		),
	)
}

// RecordToolCall records one chat tool call.
func (m *Metrics) RecordToolCall(ctx context.Context, tool string, failed bool, seconds float64) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.ChatToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
	m.ChatToolDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordChatReply records one finished chat turn.
func (m *Metrics) RecordChatReply(ctx context.Context, outcome string) {
	m.ChatReplies.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
