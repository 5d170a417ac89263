package instrumentation

import (
	"fmt"
	"time"
)

// Config selects exporters and resource attributes for a Provider.
// The config package assembles it from flags, environment and the config
// file. The zero value is a disabled provider.
type Config struct {
	ServiceName       string
	ServiceVersion    string
	ServiceInstanceID string

	// Kubernetes resource attributes, omitted when empty.
	K8sNamespace string
	K8sPodName   string

	// Enabled false yields a Provider with no-op meters and tracers.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme.
	OTLPEndpoint string

	// OTLPInsecure sends OTLP over plain HTTP. Local collectors only.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based ratio in [0, 1].
	TraceSamplingRate float64

	// DetailedLabels adds the mailbox folder to Graph operation metrics.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the audit trail of sends and bulk deletes.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs recipient addresses and raw client IDs instead of
	// recipient domains and hashed IDs.
	IncludePII bool
}

// Validate rejects unknown exporters, an out-of-range sampling rate and
// OTLP export without an endpoint.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.OTLPEndpoint == "" {
		if c.TracingExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		}
		if c.MetricsExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	}
	return nil
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	// Token refresh results
	RefreshResultSuccess = "success"
	RefreshResultFailure = "failure"

	// Extraction outcomes
	ExtractionPattern = "pattern"
	ExtractionBetween = "between"
	ExtractionMiss    = "miss"

	// Provider service name
	ServiceGraph = "graph"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// Metric recording intervals
	DefaultMetricInterval = 10 * time.Second
)
