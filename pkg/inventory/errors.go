package inventory

import "errors"

// ErrNotFound is returned when an item is missing so HTTP handlers can respond with 404.
var ErrNotFound = errors.New("inventory item not found")

// validationError carries a message that is safe to show to the vendor.
type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

func newValidationError(msg string) error {
	return validationError{message: msg}
}

// IsValidation reports whether err was caused by the request rather than the store.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}
