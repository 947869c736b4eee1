// Package pairing obtains pairing codes for unregistered sessions.
//
// A Flow waits a fixed settle delay after the socket is created, asks the
// engine for a code bound to the session's phone number and returns it in a
// human-readable, dash-grouped form ("ABCD-EFGH").
//
// # Usage
//
//	flow := pairing.New(pairing.WithSettle(3 * time.Second))
//	code, err := flow.Request(ctx, conn, "628123456789")
//	if errors.Is(err, pairing.ErrPairingRequestFailed) {
//	    // the engine refused or the socket went away; retry later
//	}
package pairing
