package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"
	MetricCodecBytes     = "codec.bytes_per_second"

	// Event freshness
	MetricEventLag = "events.feature_event_lag_seconds"

	// Availability
	MetricUptime = "service.uptime_percentage"
)

// Span names shared by the services and adapters.
const (
	SpanConvert          = "geowire.convert"
	SpanDecode           = "geowire.decode"
	SpanEncode           = "geowire.encode"
	SpanFeatureGet       = "geowire.feature.get"
	SpanFeaturePut       = "geowire.feature.put"
	SpanFeatureImport    = "geowire.feature.import"
	SpanFeatureDelete    = "geowire.feature.delete"
	SpanFeatureTransform = "geowire.feature.transform"
	SpanFeatureMirror    = "geowire.feature.mirror"
)
