// Package config loads the process-wide mailgateway settings.
//
// Values are resolved in this order, highest first: command-line flags,
// environment variables (MAILGATEWAY_ prefix), an optional YAML config
// file, then built-in defaults. A .env file in the working directory is
// loaded into the environment before anything else is read and never
// overrides variables that are already set.
//
// The API key additionally honours the unprefixed API_KEY and Api-Key
// variables. When no key is configured anywhere, DefaultAPIKey is used and
// Config.APIKeyDefaulted is set so the caller can warn about it.
//
// Telemetry settings live under the telemetry key
// (MAILGATEWAY_TELEMETRY_*) and also accept the conventional unprefixed
// names such as OTEL_EXPORTER_OTLP_ENDPOINT and METRICS_EXPORTER.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/mailgateway/internal/instrumentation"
)

const (
	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "MAILGATEWAY"

	// DefaultAPIKey is the shared secret used when none is configured.
	DefaultAPIKey = "114514"

	// DefaultEnvFile is loaded if present.
	DefaultEnvFile = ".env"
)

// Config is the resolved configuration. Treat it as read-only once loaded.
type Config struct {
	// Gateway server
	Listen            string  `mapstructure:"listen"`
	APIKey            string  `mapstructure:"api_key"`
	DeleteConcurrency int     `mapstructure:"delete_concurrency"`
	RateLimit         float64 `mapstructure:"rate_limit"`
	RateBurst         int     `mapstructure:"rate_burst"`
	TrustProxy        bool    `mapstructure:"trust_proxy"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	MetricsAddr       string  `mapstructure:"metrics_addr"`

	// Provider endpoints, overridable for testing against a stub
	GraphBaseURL string `mapstructure:"graph_base_url"`
	TokenURL     string `mapstructure:"token_url"`

	// Gateway client
	GatewayURL    string  `mapstructure:"gateway_url"`
	Retries       int     `mapstructure:"retries"`
	BackoffFactor float64 `mapstructure:"backoff_factor"`

	// Mailbox credential for the client, cleanup and mcp commands
	ClientID     string `mapstructure:"client_id"`
	RefreshToken string `mapstructure:"refresh_token"`

	// Logging
	LogFormat string `mapstructure:"log_format"`
	Debug     bool   `mapstructure:"debug"`

	Telemetry Telemetry `mapstructure:"telemetry"`

	// APIKeyDefaulted is true when APIKey fell back to DefaultAPIKey.
	APIKeyDefaulted bool `mapstructure:"-"`
}

// Telemetry configures metrics, tracing and the audit log.
type Telemetry struct {
	Enabled            bool    `mapstructure:"enabled"`
	ServiceName        string  `mapstructure:"service_name"`
	ServiceInstanceID  string  `mapstructure:"service_instance_id"`
	K8sNamespace       string  `mapstructure:"k8s_namespace"`
	K8sPodName         string  `mapstructure:"k8s_pod_name"`
	MetricsExporter    string  `mapstructure:"metrics_exporter"`
	TracingExporter    string  `mapstructure:"tracing_exporter"`
	OTLPEndpoint       string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure       bool    `mapstructure:"otlp_insecure"`
	TraceSamplingRate  float64 `mapstructure:"trace_sampling_rate"`
	PrometheusEndpoint string  `mapstructure:"prometheus_endpoint"`
	DetailedLabels     bool    `mapstructure:"detailed_labels"`
	AuditEnabled       bool    `mapstructure:"audit_enabled"`
	AuditIncludePII    bool    `mapstructure:"audit_include_pii"`
}

// Instrumentation converts the telemetry settings into a provider config.
func (t Telemetry) Instrumentation(serviceVersion string) instrumentation.Config {
	return instrumentation.Config{
		ServiceName:       t.ServiceName,
		ServiceVersion:    serviceVersion,
		ServiceInstanceID: t.ServiceInstanceID,
		K8sNamespace:      t.K8sNamespace,
		K8sPodName:        t.K8sPodName,
		Enabled:           t.Enabled,
		MetricsExporter:   t.MetricsExporter,
		TracingExporter:   t.TracingExporter,
		OTLPEndpoint:      t.OTLPEndpoint,
		OTLPInsecure:      t.OTLPInsecure,
		TraceSamplingRate: t.TraceSamplingRate,
		DetailedLabels:    t.DetailedLabels,
		AuditLogging:      t.Audit(),
	}
}

// Audit returns the audit logger settings.
func (t Telemetry) Audit() instrumentation.AuditLoggingConfig {
	return instrumentation.AuditLoggingConfig{
		Enabled:    t.AuditEnabled,
		IncludePII: t.AuditIncludePII,
	}
}

// Options controls where Load looks.
type Options struct {
	// ConfigFile is an optional YAML file. A missing file is an error.
	ConfigFile string

	// EnvFile overrides DefaultEnvFile. An explicitly named file must exist.
	EnvFile string

	// Flags are bound on top of every other source. May be nil.
	Flags *pflag.FlagSet
}

var defaults = map[string]any{
	"listen":             ":5000",
	"delete_concurrency": 8,
	"rate_limit":         0.0,
	"rate_burst":         20,
	"trust_proxy":        false,
	"metrics_enabled":    true,
	"metrics_addr":       ":9090",
	"graph_base_url":     "https://graph.microsoft.com/v1.0",
	"token_url":          "https://login.microsoftonline.com/common/oauth2/v2.0/token",
	"gateway_url":        "http://localhost:5000",
	"retries":            3,
	"backoff_factor":     2.0,
	"client_id":          "",
	"refresh_token":      "",
	"log_format":         "text",
	"debug":              false,

	"telemetry.enabled":             true,
	"telemetry.service_name":        "mailgateway",
	"telemetry.service_instance_id": "",
	"telemetry.k8s_namespace":       "",
	"telemetry.k8s_pod_name":        "",
	"telemetry.metrics_exporter":    instrumentation.ExporterPrometheus,
	"telemetry.tracing_exporter":    instrumentation.ExporterNone,
	"telemetry.otlp_endpoint":       "",
	"telemetry.otlp_insecure":       false,
	"telemetry.trace_sampling_rate": 0.1,
	"telemetry.prometheus_endpoint": "/metrics",
	"telemetry.detailed_labels":     false,
	"telemetry.audit_enabled":       true,
	"telemetry.audit_include_pii":   false,
}

// envAliases are the unprefixed variable names accepted for a key, in
// priority order. The MAILGATEWAY_ name always wins over these.
var envAliases = map[string][]string{
	"api_key":                       {"API_KEY", "Api-Key"},
	"telemetry.enabled":             {"INSTRUMENTATION_ENABLED"},
	"telemetry.service_name":        {"OTEL_SERVICE_NAME"},
	"telemetry.service_instance_id": {"OTEL_SERVICE_INSTANCE_ID"},
	"telemetry.k8s_namespace":       {"K8S_NAMESPACE", "POD_NAMESPACE"},
	"telemetry.k8s_pod_name":        {"K8S_POD_NAME", "HOSTNAME"},
	"telemetry.metrics_exporter":    {"METRICS_EXPORTER"},
	"telemetry.tracing_exporter":    {"TRACING_EXPORTER"},
	"telemetry.otlp_endpoint":       {"OTEL_EXPORTER_OTLP_ENDPOINT"},
	"telemetry.otlp_insecure":       {"OTEL_EXPORTER_OTLP_INSECURE"},
	"telemetry.trace_sampling_rate": {"OTEL_TRACES_SAMPLER_ARG"},
	"telemetry.prometheus_endpoint": {"PROMETHEUS_ENDPOINT"},
	"telemetry.detailed_labels":     {"METRICS_DETAILED_LABELS"},
	"telemetry.audit_enabled":       {"AUDIT_LOGGING_ENABLED"},
	"telemetry.audit_include_pii":   {"AUDIT_LOGGING_INCLUDE_PII"},
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"listen":             "listen",
	"api-key":            "api_key",
	"delete-concurrency": "delete_concurrency",
	"rate-limit":         "rate_limit",
	"rate-burst":         "rate_burst",
	"trust-proxy":        "trust_proxy",
	"metrics-enabled":    "metrics_enabled",
	"metrics-addr":       "metrics_addr",
	"graph-base-url":     "graph_base_url",
	"token-url":          "token_url",
	"gateway-url":        "gateway_url",
	"retries":            "retries",
	"backoff-factor":     "backoff_factor",
	"client-id":          "client_id",
	"refresh-token":      "refresh_token",
	"log-format":         "log_format",
	"debug":              "debug",

	"metrics-exporter": "telemetry.metrics_exporter",
	"tracing-exporter": "telemetry.tracing_exporter",
	"otlp-endpoint":    "telemetry.otlp_endpoint",
	"otlp-insecure":    "telemetry.otlp_insecure",
}

// Load resolves the configuration and validates it.
func Load(opts Options) (Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	// The replacer also applies to alias names, so it must leave Api-Key alone.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("binding environment for %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = DefaultAPIKey
		cfg.APIKeyDefaulted = true
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading env file %s: %w", path, err)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("api key must not be empty")
	}
	if c.Listen == "" {
		return errors.New("listen address must not be empty")
	}
	if c.DeleteConcurrency < 1 {
		return fmt.Errorf("delete concurrency must be at least 1, got %d", c.DeleteConcurrency)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %g", c.RateLimit)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if c.BackoffFactor < 1 {
		return fmt.Errorf("backoff factor must be at least 1, got %g", c.BackoffFactor)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be text or json", c.LogFormat)
	}
	instr := c.Telemetry.Instrumentation("")
	if err := instr.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
