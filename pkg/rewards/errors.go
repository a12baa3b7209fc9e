package rewards

import (
	"errors"
	"strconv"
)

var (
	// ErrNotFound is returned when an offer does not exist.
	ErrNotFound = errors.New("offer not found")
	// ErrRewardNotFound is returned for unknown government schemes.
	ErrRewardNotFound = errors.New("Reward not found.")
	// ErrOfferUnavailable is returned for missing or expired offers.
	ErrOfferUnavailable = errors.New("Offer not found or expired.")
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

// IsNotFound reports whether err names a reward or offer that cannot be redeemed.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrRewardNotFound) || errors.Is(err, ErrOfferUnavailable)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
