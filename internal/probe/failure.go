package probe

import (
	"fmt"

	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// FailureKind names why a probe produced no usable response.
type FailureKind string

const (
	FailureTransientNetwork FailureKind = "TRANSIENT_NETWORK"
	FailureRateLimited      FailureKind = "RATE_LIMITED"
	FailureCanceled         FailureKind = "CANCELED"
	FailureInvalidRequest   FailureKind = "INVALID_REQUEST"
)

// Failure is the typed result of a probe whose retries were exhausted.
type Failure struct {
	Kind   FailureKind
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Unwrap maps the failure onto the shared sentinel errors.
func (f *Failure) Unwrap() error {
	switch f.Kind {
	case FailureTransientNetwork:
		return sharedErrors.ErrTransientNetwork
	case FailureRateLimited:
		return sharedErrors.ErrRateLimited
	case FailureCanceled:
		return sharedErrors.ErrCanceled
	case FailureInvalidRequest:
		return sharedErrors.ErrInvalidRequest
	default:
		return nil
	}
}
