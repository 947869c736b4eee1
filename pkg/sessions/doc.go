// Package sessions keeps the registry of live session controllers.
//
// Manager maps a raw phone number to exactly one connection.Controller. The
// registry is split into FNV-hashed shards, each guarded by its own RWMutex;
// controllers are created under the shard write lock, so concurrent calls
// for one id never create two controllers while different ids rarely
// contend.
//
// Every controller carries a generation number. When a controller reaches a
// terminal state it reports back to the manager, which removes it only if
// the generation still matches. A controller invalidated by an
// authentication failure is replaced right away and a new pairing code is
// requested in the background.
//
// Invalidate keeps the id reserved until the old controller has exited and
// its partition is deleted. GetOrCreate waits out such a reservation, and
// likewise a controller that is still terminating, so a replacement always
// starts from an empty credential.
//
// # Usage
//
//	m := sessions.New(store, eng,
//	    sessions.WithLogger(log),
//	    sessions.WithControllerOptions(connection.WithPolicy(policy)),
//	)
//	if _, err := m.Resume(ctx); err != nil { ... }
//	res, err := m.Pair(ctx, "+62 812-3456-789")
//	...
//	_ = m.Shutdown(ctx)
package sessions
