package sweeper

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid sweeper configuration")
	ErrBackupFailed       = errors.New("ledger backup failed")
	ErrUploadFailed       = errors.New("failed to upload backup object")
	ErrBucketNotFound     = errors.New("backup bucket not found")
	ErrAccessDenied       = errors.New("access to backup bucket denied")
	ErrServiceUnavailable = errors.New("object storage is unavailable")
)
