// Package common defines shared constants and sentinel errors used across
// the agent's layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Vault errors.
	ErrDecryption    = errors.New("decryption failed")
	ErrNoCredentials = errors.New("credentials do not exist for participant")

	// Drive provider errors. ErrDriveNotReady means the export is still being
	// prepared on the provider side and the task should be retried later.
	ErrDriveNotReady    = errors.New("drive not ready")
	ErrCannotAuthorize  = errors.New("cannot authorize session without credentials")
	ErrDownloadFailed   = errors.New("archive download failed")
	ErrArchiveCorrupted = errors.New("archive corrupted")
)
