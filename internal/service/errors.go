package service

import "errors"

// ForbiddenError carries the client-visible message for a refused
// operation. The HTTP layer renders it as a ForbiddenOperationException.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

func NewForbidden(message string) *ForbiddenError { return &ForbiddenError{Message: message} }

// IllegalArgumentError marks malformed or missing request input. The HTTP
// layer renders it as an IllegalArgumentException.
type IllegalArgumentError struct {
	Message string
}

func (e *IllegalArgumentError) Error() string { return e.Message }

func NewIllegalArgument(message string) *IllegalArgumentError {
	return &IllegalArgumentError{Message: message}
}

var (
	ErrInvalidCredentials = NewForbidden("Invalid credentials. Invalid username or password.")
	ErrInvalidToken       = NewForbidden("Invalid token.")
	ErrInvalidProfile     = NewForbidden("Invalid profile.")
	ErrUserBanned         = NewForbidden("Account has been banned.")

	ErrRegistrationDisabled = NewForbidden("Registration is not available.")
	ErrEmailExists          = NewForbidden("Email address is already registered.")
	ErrNicknameExists       = NewForbidden("Nickname is already taken.")
	ErrInvalidVerifyCode    = NewForbidden("Invalid or expired verify code.")
	ErrVerifyUnavailable    = NewForbidden("Verification is not available.")

	ErrJoinNotFound = errors.New("join session not found")
)

// IsForbidden reports whether err should surface as a forbidden
// operation rather than an internal failure.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// IsIllegalArgument reports whether err stems from malformed input.
func IsIllegalArgument(err error) bool {
	var ie *IllegalArgumentError
	return errors.As(err, &ie)
}
