// Package secrets seals credential material at rest.
//
// A Cipher holds a 32-byte application key. Every Seal/Open call names a
// scope (the session id): a per-scope key is derived with HKDF-SHA-256 and the
// scope is also bound as additional authenticated data, so a blob copied from
// one session partition to another fails to open.
//
// Output layout is nonce || AES-256-GCM ciphertext || tag.
//
// # Usage
//
//	key, _ := secrets.ParseKey(os.Getenv("AUTH_ENCRYPTION_KEY"))
//	c, _ := secrets.New(key)
//	sealed, _ := c.Seal("628123456789", creds)
//	creds, _ = c.Open("628123456789", sealed)
package secrets
