// Package advisor - errors.go
// Defines session-specific errors.

package advisor

import "errors"

var (
	ErrStreamActive       = errors.New("a stream is already active for this session")
	ErrEmptyMessage       = errors.New("message is empty after trimming")
	ErrSessionClosed      = errors.New("session has been closed")
	ErrInitialMessageSent = errors.New("initial message was already sent")
	ErrSessionNotFound    = errors.New("session not found")
)
