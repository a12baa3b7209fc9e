package account

import "errors"

var (
	// ErrNotFound is returned when a consumer or vendor id does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned by the login checks.
	ErrInvalidCredentials = errors.New("Invalid email or password. Please try again.")
)

// validationError communicates rule violations back to HTTP handlers.
type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

func newValidationError(msg string) error {
	return validationError{message: msg}
}

// IsValidation helps callers distinguish between business and infrastructure failures.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}
