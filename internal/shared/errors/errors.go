package errors

import "errors"

// Scan errors
var (
	// Probe errors
	ErrTransientNetwork  = errors.New("transient network error")
	ErrRateLimited       = errors.New("rate limited by target")
	ErrCanceled          = errors.New("probe canceled")
	ErrInvalidRequest    = errors.New("invalid probe request")
	ErrAmbiguousResponse = errors.New("ambiguous response")

	// Check errors
	ErrResourceCreation = errors.New("test account creation failed")
	ErrSignupDisabled   = errors.New("signup is disabled")
	ErrCheckSkipped     = errors.New("check skipped")

	// Cleanup errors
	ErrCleanupUnauthorized = errors.New("cleanup requires a management API token")
	ErrCleanupFailed       = errors.New("test account deletion failed")

	// Configuration errors
	ErrConfiguration   = errors.New("configuration error")
	ErrMissingRequired = errors.New("missing required field")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidPhase    = errors.New("invalid phase selection")

	// Report errors
	ErrSerializationFailed = errors.New("serialization failed")
	ErrUnknownFormat       = errors.New("unknown report format")
)
