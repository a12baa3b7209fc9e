// Package phone validates the mobile numbers bills are addressed to.
package phone

import "errors"

// Length is the number of digits in a MossPay phone number.
const Length = 10

// ErrInvalid is the message shown when a number is rejected.
var ErrInvalid = errors.New("Please enter a valid 10-digit phone number.")

// Validate accepts exactly ten ASCII digits and nothing else.
func Validate(number string) error {
	if len(number) != Length {
		return ErrInvalid
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return ErrInvalid
		}
	}
	return nil
}
