package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when the grading API reports 404 for a
	// job. The job will never appear, so callers must stop polling.
	ErrJobNotFound = errors.New("job not found")

	// ErrWatchNotFound is returned when no watch exists for an audio id.
	ErrWatchNotFound = errors.New("watch not found")

	// ErrTornDown is returned when an action is invoked on a coordinator
	// after Teardown.
	ErrTornDown = errors.New("watch already torn down")

	// ErrTranscriptNotReady is returned when a grading action is requested
	// before the backing transcription has completed.
	ErrTranscriptNotReady = errors.New("transcript is not completed yet")
)

// TransientError wraps a network, timeout, or server-side (5xx) failure of
// a single status fetch. Polling loops swallow it and try again on the next
// tick; it is never surfaced as fatal.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a TransientError anywhere in its chain.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// RejectedError is a non-transient rejection of a user-initiated action
// (retry, initiate grading, delete grading). It carries the server's HTTP
// status and detail message and is surfaced synchronously to the caller.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("action rejected (%d): %s", e.StatusCode, e.Message)
}
