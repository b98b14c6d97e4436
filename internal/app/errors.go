package app

import (
	"errors"
	"fmt"

	"blogsvc/internal/media"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrConflict           = errors.New("conflict")
	ErrEmailAlreadyExists = fmt.Errorf("%w: user already exists", ErrConflict)

	// ErrInvalidCredentials is shown to end users for both unknown email and
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUnauthenticated = errors.New("no token provided")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", ErrForbidden)

	ErrInvalidCode = errors.New("invalid or expired code")

	ErrNotFound = errors.New("article not found")

	// ErrNotificationFailed means the approver could not be reached. The code
	// stays stored and can still be verified.
	ErrNotificationFailed = errors.New("notification delivery failed")
	ErrUpstream           = errors.New("upstream service failed")

	ErrUnsupportedImage = media.ErrUnsupportedImage
)

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
