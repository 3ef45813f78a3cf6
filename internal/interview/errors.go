package interview

import "errors"

var (
	// ErrSessionNotFound means the id is unknown to the registry.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy means another exchange holds the session and the
	// backpressure policy is reject.
	ErrSessionBusy = errors.New("session busy")

	// ErrSessionComplete means the interview already finished; the session
	// only serves reports now.
	ErrSessionComplete = errors.New("session complete")

	// ErrSessionArchived means the session was archived and is read-only.
	ErrSessionArchived = errors.New("session archived")
)
