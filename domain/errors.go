package domain

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrDuplicate         = errors.New("record already exists")
	// ErrRegistrationClosed is returned once the first account exists.
	ErrRegistrationClosed = errors.New("registration requires an administrator")
)

// ValidationError marks input the caller must correct before retrying.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

func NewValidationError(msg string) error {
	return ValidationError{Message: msg}
}

// IsValidation reports whether err is a validation failure. An empty cart counts as one.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v) || errors.Is(err, ErrEmptyCart)
}
