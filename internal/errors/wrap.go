package errors

import "fmt"

// Wrap adds context to err. It returns nil if err is nil so it can be used inline.
//
// The chain is preserved, so errors.Is keeps matching sentinels:
//
//	if err := client.Authenticate(ctx); err != nil {
//	    return errors.Wrap(err, "bootstrap")
//	}
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Mark attaches the sentinel to a cause so both are reachable with errors.Is.
func Mark(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
