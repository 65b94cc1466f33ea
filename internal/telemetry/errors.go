package telemetry

import "codeberg.org/mutker/blinktrack/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("telemetry_invalid_config")

	// Collection Errors
	ErrMetricsCollection = errors.ErrorCode("telemetry_metrics_collection_failed")
	ErrInvalidMetrics    = errors.ErrorCode("telemetry_invalid_metrics")

	// Operation Errors
	ErrOperationTimeout = errors.ErrorCode("telemetry_operation_timeout")
)
