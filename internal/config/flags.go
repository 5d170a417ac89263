package config

import "github.com/spf13/pflag"

// RegisterFlags declares every configuration flag on fs. Flag defaults are
// only shown in help; unset flags never override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")
	fs.String("env-file", "", "Path to a .env file (default: ./.env if present)")

	fs.String("listen", ":5000", "Gateway listen address")
	fs.String("api-key", "", "Shared secret expected in the Api-Key header. Can also use MAILGATEWAY_API_KEY or API_KEY")
	fs.Int("delete-concurrency", 8, "Maximum concurrent deletions during bulk delete")
	fs.Float64("rate-limit", 0, "Requests per second allowed per client IP (0 disables)")
	fs.Int("rate-burst", 20, "Per-IP burst size for rate limiting")
	fs.Bool("trust-proxy", false, "Take the client IP from X-Forwarded-For / X-Real-IP")
	fs.Bool("metrics-enabled", true, "Serve Prometheus metrics on a dedicated port")
	fs.String("metrics-addr", ":9090", "Metrics server address")

	fs.String("graph-base-url", "https://graph.microsoft.com/v1.0", "Mail API base URL")
	fs.String("token-url", "https://login.microsoftonline.com/common/oauth2/v2.0/token", "OAuth token endpoint")

	fs.String("gateway-url", "http://localhost:5000", "Gateway base URL used by client commands")
	fs.Int("retries", 3, "Retries after a failed gateway call")
	fs.Float64("backoff-factor", 2, "Growth factor of the wait between retries")

	fs.String("client-id", "", "OAuth application (client) ID of the mailbox")
	fs.String("refresh-token", "", "Refresh token of the mailbox")

	fs.String("metrics-exporter", "prometheus", "Metrics exporter: prometheus, otlp or stdout")
	fs.String("tracing-exporter", "none", "Tracing exporter: otlp, stdout or none")
	fs.String("otlp-endpoint", "", "OTLP collector host:port")
	fs.Bool("otlp-insecure", false, "Export OTLP over plain HTTP")

	fs.String("log-format", "text", "Log format: text or json")
	fs.Bool("debug", false, "Enable debug logging")
}
