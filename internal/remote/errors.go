package remote

import "errors"

var (
	// ErrUploadFailed indicates the temp write or the commit rename failed.
	ErrUploadFailed = errors.New("remote: upload failed")

	// ErrDeleteFailed indicates a remote file could not be removed.
	ErrDeleteFailed = errors.New("remote: delete failed")

	// ErrDownloadFailed indicates a remote file could not be read back.
	ErrDownloadFailed = errors.New("remote: download failed")

	// ErrConnectionLost indicates the transport is no longer usable.
	// Reconnection is left to whoever owns the transport.
	ErrConnectionLost = errors.New("remote: connection lost")

	// ErrEmptyName indicates an upload with no file name.
	ErrEmptyName = errors.New("remote: empty file name")
)
