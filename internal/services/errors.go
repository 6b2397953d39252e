package services

import (
	"errors"
	"fmt"

	"github.com/desertthunder/filealchemy/internal/shared"
)

// ConnectivityError means the backend could not be reached or answered with an unexpected status.
//
// Callers fall back to local conversion on this error.
type ConnectivityError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ConnectivityError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s: backend unavailable", e.Op)
	}
}

func (e *ConnectivityError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrServiceUnavailable}
	}
	return []error{shared.ErrServiceUnavailable, e.Err}
}

// RejectedError means the backend refused a request as invalid (4xx on upload or convert).
type RejectedError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: rejected: %s", e.Op, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return shared.ErrAPIRequest
}

// JobFailedError means the backend was reachable but could not convert the file.
type JobFailedError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *JobFailedError) Unwrap() error {
	return shared.ErrJobFailed
}

// IsConnectivity reports whether err is (or wraps) a [ConnectivityError].
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// IsRejected reports whether err is (or wraps) a [RejectedError].
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsJobFailed reports whether err is (or wraps) a [JobFailedError].
func IsJobFailed(err error) bool {
	var je *JobFailedError
	return errors.As(err, &je)
}
