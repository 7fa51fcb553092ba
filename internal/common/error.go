package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrorInternal is the ServerError kind: an unexpected store or email
	// failure. The whole operation may be resubmitted by the caller.
	ErrorInternal = errors.New("internal error")

	// ErrServerMisconfigured reports a missing secret, password or transport
	// credential. Operators must fix the deployment.
	ErrServerMisconfigured = errors.New("server misconfigured")

	// Caller errors.
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrIdentityMismatch = errors.New("identity mismatch")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// ErrNotificationFailed is returned after a committed ticket change whose
// email could not be delivered. The change stands.
var ErrNotificationFailed = fmt.Errorf("%w: ticket updated but the email could not be sent", ErrorInternal)
