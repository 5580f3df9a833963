package repository

import "errors"

// ErrNotFound is returned by writes that need an existing local row.
var ErrNotFound = errors.New("record not found")

// Source says which path produced a result.
type Source int

const (
	// SourceLocal: the remote store was not consulted, because the gate was
	// closed or the local store already had the answer.
	SourceLocal Source = iota + 1
	// SourceRemote: the remote store answered.
	SourceRemote
	// SourceLocalFallback: the remote store was tried, failed, and the local
	// store answered instead.
	SourceLocalFallback
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceLocalFallback:
		return "local_fallback"
	default:
		return "unknown"
	}
}

// Result is a single-record read. Found is false for a missing record,
// which is not an error.
type Result[T any] struct {
	Value  T
	Found  bool
	Source Source
}

// ListResult is a listing read.
type ListResult[T any] struct {
	Items  []T
	Source Source
}

// WriteResult reports the local key a write landed on.
type WriteResult struct {
	Key int64
	// Mirrored is true when the remote store accepted the write.
	Mirrored bool
	// Existing is true when the write matched a record already stored and
	// nothing new was written.
	Existing bool
}
