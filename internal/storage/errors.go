package storage

import "errors"

var (
	// ErrStoreUnavailable marks backend unreachability. Retryable with
	// backoff, never conflated with an empty query result.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch marks a vector whose dimensionality does not
	// match the collection. Fatal: every subsequent call would fail too.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrManifestNotFound means a document has never been indexed.
	ErrManifestNotFound = errors.New("document manifest not found")
)
