package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/gin-gonic/gin"
)

// SetupTracing initializes OpenTelemetry tracing with a stdout exporter
func SetupTracing(serviceName string) (func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// SetupMetrics initializes the Prometheus exporter and sets the global
// meter provider. Scrape via MetricsHandler on the main router.
func SetupMetrics() (*sdkmetric.MeterProvider, error) {
	exp, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)
	return mp, nil
}

// MetricsHandler serves the Prometheus scrape endpoint
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// ChatMetrics holds the instruments recorded on the chat path
type ChatMetrics struct {
	sends     otelmetric.Int64Counter
	failures  otelmetric.Int64Counter
	llmTokens otelmetric.Int64Counter
	latency   otelmetric.Float64Histogram
}

// NewChatMetrics registers chat instruments on the global meter provider
func NewChatMetrics() (*ChatMetrics, error) {
	meter := otel.Meter("persona-chat")

	sends, err := meter.Int64Counter("chat_sends_total",
		otelmetric.WithDescription("Chat messages accepted for completion"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("chat_failures_total",
		otelmetric.WithDescription("Chat completions that failed upstream"))
	if err != nil {
		return nil, err
	}
	llmTokens, err := meter.Int64Counter("llm_output_tokens_total",
		otelmetric.WithDescription("Tokens returned by the LLM upstream"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("chat_completion_seconds",
		otelmetric.WithDescription("End-to-end chat completion latency"))
	if err != nil {
		return nil, err
	}

	return &ChatMetrics{
		sends:     sends,
		failures:  failures,
		llmTokens: llmTokens,
		latency:   latency,
	}, nil
}

// RecordSend counts an accepted chat message
func (m *ChatMetrics) RecordSend(ctx context.Context) {
	if m == nil {
		return
	}
	m.sends.Add(ctx, 1)
}

// RecordFailure counts a failed completion
func (m *ChatMetrics) RecordFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1)
}

// RecordCompletion records latency and token usage for a completion
func (m *ChatMetrics) RecordCompletion(ctx context.Context, elapsed time.Duration, outputTokens int64) {
	if m == nil {
		return
	}
	m.latency.Record(ctx, elapsed.Seconds())
	if outputTokens > 0 {
		m.llmTokens.Add(ctx, outputTokens)
	}
}
