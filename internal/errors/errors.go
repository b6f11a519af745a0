// Package errors provides the sentinel errors used across poolprobe.
//
// Callers check categories with errors.Is. This package must not import any
// other internal package.
package errors

import "errors"

var (
	// ErrAuthentication indicates the token exchange was rejected or returned
	// no access token. It is fatal to a sweep.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRouting indicates the UI server lookup failed. It is fatal to a sweep.
	ErrRouting = errors.New("ui server routing failed")

	// ErrMissingConfig indicates one or more required settings are absent.
	ErrMissingConfig = errors.New("missing required configuration")

	// ErrConfigInvalid indicates a configuration value is out of range or malformed.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrInvalidPayload indicates a transaction payload failed validation
	// before it was serialized.
	ErrInvalidPayload = errors.New("invalid transaction payload")

	// ErrHistoryNotFound indicates the requested sweep is not in the history store.
	ErrHistoryNotFound = errors.New("sweep not found in history")

	// ErrUnknownPattern indicates a pattern name or mode that the driver does not know.
	ErrUnknownPattern = errors.New("unknown pattern")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
