package store

import "errors"

var (
	// ErrNotFound means the remote store has no such entity.
	ErrNotFound = errors.New("not found in remote store")

	// ErrRemoteRejected means every payload variant was refused with
	// a client-side status.
	ErrRemoteRejected = errors.New("remote store rejected the mutation")

	// ErrRemoteUnavailable covers network failures, timeouts,
	// server-side errors and an open circuit breaker.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)
