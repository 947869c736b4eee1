package api

import "errors"

var (
	// ErrPhoneNumberRequired is rendered when the phoneNumber parameter is missing.
	ErrPhoneNumberRequired = errors.New("Phone number is required")

	// ErrSessionNotFound is rendered when no controller exists for a number.
	ErrSessionNotFound = errors.New("session not found")
)
