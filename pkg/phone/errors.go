package phone

import "errors"

// ErrInvalidIdentifier is returned when a number does not start with a known
// country calling code. The message is shown to API callers as is.
var ErrInvalidIdentifier = errors.New("invalid phone number: enter the phone number with your country code, e.g. +628XXXXXXXX")
