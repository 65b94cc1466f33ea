package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"
	ErrNotSupported    ErrorCode = "not_supported"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Resource errors
	ErrResourceBusy      ErrorCode = "resource_busy"
	ErrResourceNotFound  ErrorCode = "resource_not_found"
	ErrResourceExhausted ErrorCode = "resource_exhausted"

	// Application errors
	ErrInitApp        ErrorCode = "init_app_failed"
	ErrMainLoop       ErrorCode = "main_loop_failed"
	ErrAlreadyRunning ErrorCode = "already_running"
	ErrNotRunning     ErrorCode = "not_running"

	// Detection errors
	ErrInvalidThreshold         ErrorCode = "invalid_threshold"
	ErrInvalidConsecutiveFrames ErrorCode = "invalid_consecutive_frames"
	ErrInvalidMode              ErrorCode = "invalid_detector_mode"

	// Frame source errors
	ErrOpenSource   ErrorCode = "open_source_failed"
	ErrReadFrame    ErrorCode = "read_frame_failed"
	ErrSourceClosed ErrorCode = "source_closed"

	// Operation errors
	ErrOperationFailed  ErrorCode = "operation_failed"
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"

	// Store errors
	ErrInitStore  ErrorCode = "init_store_failed"
	ErrWriteStore ErrorCode = "write_store_failed"
	ErrQueryStore ErrorCode = "query_store_failed"
	ErrCloseStore ErrorCode = "close_store_failed"

	// Notification errors
	ErrNotify ErrorCode = "notify_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:                 "Internal error occurred",
	ErrInvalidArgument:          "Invalid argument provided",
	ErrNotImplemented:           "Operation not implemented",
	ErrNotSupported:             "Operation not supported by this detector",
	ErrUnavailable:              "Service unavailable",
	ErrInvalidConfig:            "Invalid configuration",
	ErrMissingConfig:            "Missing configuration",
	ErrBindFlags:                "Failed to bind flags",
	ErrReadConfig:               "Failed to read configuration",
	ErrInvalidInterval:          "Invalid interval value",
	ErrInvalidLogLevel:          "Invalid log level",
	ErrInitFailed:               "Initialization failed",
	ErrShutdownFailed:           "Shutdown failed",
	ErrResourceBusy:             "Resource is busy",
	ErrResourceNotFound:         "Resource not found",
	ErrResourceExhausted:        "Resource exhausted",
	ErrInitApp:                  "Failed to initialize application",
	ErrMainLoop:                 "Error in main loop",
	ErrAlreadyRunning:           "Tracking is already running",
	ErrNotRunning:               "Tracking is not running",
	ErrInvalidThreshold:         "EAR threshold must be between 0 and 1",
	ErrInvalidConsecutiveFrames: "Consecutive frames must be between 1 and 10",
	ErrInvalidMode:              "Unknown detector mode",
	ErrOpenSource:               "Failed to open frame source",
	ErrReadFrame:                "Failed to read frame",
	ErrSourceClosed:             "Frame source closed",
	ErrOperationFailed:          "Operation failed",
	ErrTimeout:                  "Operation timed out",
	ErrInvalidOperation:         "Invalid operation",
	ErrInitStore:                "Failed to initialize store",
	ErrWriteStore:               "Failed to write to store",
	ErrQueryStore:               "Failed to query store",
	ErrCloseStore:               "Failed to close store",
	ErrNotify:                   "Failed to deliver notification",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
