package state

import "codeberg.org/mutker/powerlog/internal/errors"

const (
	// Configuration Errors
	ErrInvalidDBPath = errors.ErrorCode("state_invalid_db_path")

	// Storage Errors
	ErrStorageInit   = errors.ErrorCode("state_storage_init_failed")
	ErrStorageAccess = errors.ErrorCode("state_storage_access_failed")
	ErrStorageClose  = errors.ErrorCode("state_storage_close_failed")
	ErrStateCorrupt  = errors.ErrorCode("state_record_corrupt")
)
