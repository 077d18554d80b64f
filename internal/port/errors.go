package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports.
var (
	ErrStrategyNotFound     = errors.New("answer strategy not found")
	ErrPodcastNotFound      = errors.New("podcast not found")
	ErrEpisodeNotFound      = errors.New("episode not found")
	ErrTranscriptMissing    = errors.New("episode has no transcript")
	ErrQuestionsUnsupported = errors.New("provider does not support structured question generation")
	ErrQueueUnavailable     = errors.New("work queue not configured")
	ErrBadJob               = errors.New("malformed work queue entry")
)

// InputError rejects an empty or malformed request before any processing.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
	}
	return "invalid input: " + e.Reason
}

func (e *InputError) Unwrap() error { return e.Err }

// NewInputError creates an InputError with the given reason.
func NewInputError(format string, args ...any) *InputError {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// EmbeddingServiceError means the remote embedding call failed or returned
// the wrong number of vectors. The whole batch is lost; nothing was stored.
type EmbeddingServiceError struct {
	Want int // vectors expected; 0 when the call itself failed
	Got  int
	Err  error
}

func (e *EmbeddingServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding service: %v", e.Err)
	}
	return fmt.Sprintf("embedding service: got %d vectors for %d inputs", e.Got, e.Want)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// StorageError means persisting one record failed.
type StorageError struct {
	Index     int // position of the record within the run; -1 when clearing prior records failed
	EpisodeID int64
	Err       error
}

func (e *StorageError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("clear records for episode %d: %v", e.EpisodeID, e.Err)
	}
	return fmt.Sprintf("store record %d for episode %d: %v", e.Index, e.EpisodeID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsInputError reports whether err wraps an *InputError.
func IsInputError(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}

// IsEmbeddingServiceError reports whether err wraps an *EmbeddingServiceError.
func IsEmbeddingServiceError(err error) bool {
	var target *EmbeddingServiceError
	return errors.As(err, &target)
}

// IsStorageError reports whether err wraps a *StorageError.
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
