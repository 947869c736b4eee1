// Package whatsmeow binds the engine contract to go.mau.fi/whatsmeow.
//
// Device key material lives in whatsmeow's own SQL store, opened on the same
// Postgres database as the rest of the service. The credential bundle kept in
// authstate only records the device JID once pairing succeeds, so a session
// can be resumed with Engine.Connect after a restart.
//
// whatsmeow's built-in reconnect loop is disabled: reconnect policy belongs to
// the session controller, which sees every drop as a ConnectionUpdate.
//
// # Usage
//
//	db := stdlib.OpenDBFromPool(pool)
//	eng, err := whatsmeow.New(ctx, db, whatsmeow.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	manager := sessions.New(store, eng)
package whatsmeow
