package store

import "codeberg.org/mutker/blinktrack/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")

	// Schema Errors
	ErrSchemaMigrationFailed = errors.ErrorCode("store_schema_migration_failed")
	ErrTransactionFailed     = errors.ErrorCode("store_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitStore
	ErrStorageWrite = errors.ErrWriteStore
	ErrStorageQuery = errors.ErrQueryStore
	ErrStorageClose = errors.ErrCloseStore

	ErrInvalidArgument = errors.ErrInvalidArgument
)
