package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrRemoteUnavailable indicates the catalog backend could not be reached
	ErrRemoteUnavailable = errors.New("catalog server is unreachable")

	// ErrEmptyCatalog indicates there are no items, locally or remotely
	ErrEmptyCatalog = errors.New("catalog is empty")

	// ErrDeckExhausted indicates every known index has been viewed
	ErrDeckExhausted = errors.New("all cards have been viewed")

	// ErrPersistenceFailure indicates a local store write failed
	ErrPersistenceFailure = errors.New("failed to persist progress")

	// ErrChatRequestFailure indicates the chat completion call failed or streamed garbage
	ErrChatRequestFailure = errors.New("chat request failed")

	// ErrAuthFailed indicates the catalog token was rejected
	ErrAuthFailed = errors.New("authentication token is invalid")
)
