package alert

import "codeberg.org/mutker/powerlog/internal/errors"

const (
	ErrMissingCredentials = errors.ErrorCode("alert_missing_credentials")
	ErrSendFailed         = errors.ErrorCode("alert_send_failed")
	ErrUnexpectedStatus   = errors.ErrorCode("alert_unexpected_status")
	ErrDocumentOpen       = errors.ErrorCode("alert_document_open_failed")
)
