package billing

import "errors"

var (
	// ErrNotFound is returned when a bill does not exist.
	ErrNotFound = errors.New("Bill not found.")
	// ErrForbidden is returned when a consumer touches someone else's bill.
	ErrForbidden = errors.New("Not authorized.")
)

type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

func newValidationError(msg string) error {
	return validationError{message: msg}
}

// IsValidation reports whether err was caused by the request.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// notFoundError is a 404 with a message tailored to what was missing.
type notFoundError struct {
	message string
}

func (e notFoundError) Error() string { return e.message }

// IsNotFound reports whether err means the referenced bill or customer does not exist.
func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.Is(err, ErrNotFound) || errors.As(err, &nf)
}
