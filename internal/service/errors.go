package service

import "errors"

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnsupportedRole    = errors.New("only students and faculty are supported")
	ErrProfileNotFound    = errors.New("user not found in directory")
	ErrThrottled          = errors.New("too many failed sign-in attempts")
	ErrRevokeCurrent      = errors.New("current session must be signed out instead")
)

// FailureKind names a sign-in failure for logs and metrics. Callers only
// ever see a generic rejection.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnsupportedRole):
		return "unsupported_role"
	case errors.Is(err, ErrProfileNotFound):
		return "profile_not_found"
	case errors.Is(err, ErrThrottled):
		return "throttled"
	default:
		return "internal"
	}
}
