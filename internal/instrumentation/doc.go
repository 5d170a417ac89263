// Package instrumentation provides OpenTelemetry instrumentation for mailgateway.
//
// # Metrics
//
// Gateway:
//   - http_requests_total, http_request_duration_seconds: by method, route, status
//   - gateway_auth_rejections_total: requests failing the API key check
//
// Mail provider:
//   - graph_api_operations_total, graph_api_operation_duration_seconds:
//     by operation and status (plus folder when DetailedLabels is set)
//   - graph_messages_deleted_total: per-message bulk delete outcomes
//   - oauth_token_refresh_total: refresh-token exchanges by result
//
// Extraction and MCP:
//   - extractions_total: by outcome (pattern, between, miss)
//   - mcp_tool_invocations_total: by tool and status
//
// # Tracing
//
// Spans are created for each inbound gateway request (via otelhttp) and for
// each provider call (graph.<operation>).
//
// # Configuration
//
// Config is plain data; the config package fills it from flags, the
// MAILGATEWAY_TELEMETRY_* variables and the usual OTEL_* names.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, cfg.Telemetry.Instrumentation(version))
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordGraphOperation(ctx, instrumentation.OperationList,
//		"inbox", instrumentation.StatusSuccess, time.Since(start))
package instrumentation
