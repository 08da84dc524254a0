package logfile

import "codeberg.org/mutker/powerlog/internal/errors"

const (
	ErrOpenFailed    = errors.ErrorCode("logfile_open_failed")
	ErrWriteFailed   = errors.ErrorCode("logfile_write_failed")
	ErrRotateFailed  = errors.ErrorCode("logfile_rotate_failed")
	ErrScanFailed    = errors.ErrorCode("logfile_scan_failed")
	ErrBadLastRecord = errors.ErrorCode("logfile_bad_last_record")
)
