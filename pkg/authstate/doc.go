// Package authstate persists the opaque credential bundle of each messaging
// session.
//
// A State holds the registration flag, the engine-issued credential material
// and free-form metadata. Stores are partitioned by session id: nothing is
// shared between two ids, and deleting an id removes its partition wholesale.
//
// # Backends
//
//   - MemoryStore   – process-local map, used in tests.
//   - FileStore     – one directory per id holding creds.json, written
//     atomically through a temp file and rename.
//   - RedisStore    – one key per id (github.com/redis/go-redis/v9).
//   - PostgresStore – one row per id in auth_states (github.com/jackc/pgx/v5);
//     the schema ships as goose migrations in Migrations.
//   - EncryptedStore – decorator that seals the credential material with a
//     per-session key before delegating to another Store.
//
// # Errors
//
// Load returns ErrNotFound when an id has never been saved (or was deleted).
// Delete of an absent id is not an error.
package authstate
