// Package connection implements the per-session connection controller.
//
// A Controller owns one engine connection for one session id and drives it
// through an explicit state machine:
//
//	idle -> loading_creds -> connecting -> awaiting_pairing | open
//	connecting | awaiting_pairing | open -> classifying
//	classifying -> reconnecting -> loading_creds
//	classifying -> invalidated | failed
//	any non-terminal -> stopped | invalidated
//
// Every input (engine events, timers, pairing results, caller commands) is
// posted to a single mailbox and handled by one goroutine, in order. Each
// engine connection gets a new epoch; events, timers and pairing results
// tagged with an older epoch are dropped.
//
// Disconnects are classified by Policy: status codes listed in
// AuthFailureCodes invalidate the credentials; everything else is retried
// after ReconnectDelay. Protocol errors are retried up to MaxErrorRetries
// times, close-driven retries up to MaxCloseRetries (zero means unbounded).
//
// # Usage
//
//	c := connection.New(id, store, eng,
//	    connection.WithPolicy(connection.DefaultPolicy()),
//	    connection.WithDispatcher(dispatcher.New(dispatcher.AutoReply{Trigger: "hi", Reply: "hello"})),
//	    connection.WithLogger(log),
//	)
//	res, err := c.Pair(ctx)
//	if err != nil { ... }
//	if res.Registered { /* already linked */ } else { fmt.Println(res.Code) }
//	defer c.Stop(context.Background())
package connection
