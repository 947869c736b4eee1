// Package phone turns raw, user-typed phone numbers into session identifiers.
//
// Normalize strips every non-digit character, so "+62 812-3456-789" and
// "628123456789" address the same session. Normalization is idempotent.
//
// Validate checks that a normalized number starts with a known international
// calling code and has a plausible E.164 length. It is used before a pairing
// code is requested, because the messaging network rejects numbers without a
// country code.
//
// # Usage
//
//	id := phone.Normalize(r.URL.Query().Get("phoneNumber"))
//	if err := phone.Validate(id); err != nil {
//		// errors.Is(err, phone.ErrInvalidIdentifier)
//	}
package phone
