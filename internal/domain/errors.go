package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrUnknownBackend indicates the configured storage backend is not supported
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrStorageClosed indicates an operation on storage that has been closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidMediaItem indicates a media item whose kind and detail disagree
	ErrInvalidMediaItem = errors.New("invalid media item")
)
