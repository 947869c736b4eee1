// Package statemachine provides a generic, table-driven finite state machine.
//
// States and events are any comparable types, typically string-based
// constants declared by the owning package. The machine handles:
//  1. Transition lookup by current state and event
//  2. Optional Guard evaluation to pick among competing transitions
//  3. Execution of side-effect Actions before the state changes
//  4. Transition hooks run after the state changes
//  5. Terminal states that refuse further transitions
//
// # Architecture
//
// Machine keeps transitions in a nested map [from][event][]Transition and
// guards all access with a RWMutex. Configuration uses functional options.
//
// # Usage
//
//	type State string
//	type Event string
//
//	const (
//	    Idle    State = "idle"
//	    Running State = "running"
//	    Done    State = "done"
//	    Start   Event = "start"
//	    Finish  Event = "finish"
//	)
//
//	m := statemachine.MustNew(Idle,
//	    statemachine.WithTerminal[State, Event](Done),
//	    statemachine.WithTransition(Idle, Running, Start),
//	    statemachine.WithTransition(Running, Done, Finish),
//	    statemachine.OnTransition(func(from, to State, ev Event) {
//	        slog.Info("transition", "from", from, "to", to, "event", ev)
//	    }),
//	)
//
//	next, err := m.Fire(ctx, Start, nil)
//
// # Error Handling
//
// Fire errors are *FireError values that match the sentinels:
//
//	if errors.Is(err, statemachine.ErrNoTransition) { /* ... */ }
//	if errors.Is(err, statemachine.ErrRejected)     { /* ... */ }
package statemachine
