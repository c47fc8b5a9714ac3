package source

import (
	"context"
	"errors"
)

var (
	// ErrProviderUnavailable tags network failures and 5xx-class responses.
	ErrProviderUnavailable = errors.New("source: provider unavailable")

	// ErrInvalidResponseShape tags responses that do not parse into the
	// category's payload schema.
	ErrInvalidResponseShape = errors.New("source: invalid response shape")

	// ErrAuthenticationFailed tags missing or rejected credentials.
	ErrAuthenticationFailed = errors.New("source: authentication failed")
)

const (
	ReasonProviderUnavailable = "provider_unavailable"
	ReasonInvalidResponse     = "invalid_response_shape"
	ReasonAuthentication      = "authentication_failed"
	ReasonTimeout             = "timeout"
	ReasonUnknown             = "unknown"
)

// Reason maps a fetch error to a low-cardinality tag for usage logs and
// metrics labels.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return ReasonTimeout
	case errors.Is(err, ErrAuthenticationFailed):
		return ReasonAuthentication
	case errors.Is(err, ErrInvalidResponseShape):
		return ReasonInvalidResponse
	case errors.Is(err, ErrProviderUnavailable):
		return ReasonProviderUnavailable
	default:
		return ReasonUnknown
	}
}
