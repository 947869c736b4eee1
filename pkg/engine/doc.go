// Package engine defines the contract between session controllers and the
// messaging protocol engine.
//
// The engine owns handshake, encryption and framing. Controllers only see:
//
//   - Engine.Connect, which opens a connection for a credential bundle;
//   - Conn.Events, a typed, ordered event stream (credentials updates,
//     connection state changes, inbound messages, protocol errors);
//   - Conn.RequestPairingCode and Conn.SendMessage.
//
// Events are delivered on a channel that is closed when the connection is
// torn down. Implementations must never block forever on that channel after
// Close has been called.
//
// Subpackage enginetest provides a scripted in-memory engine for tests; the
// whatsmeow subpackage binds the contract to go.mau.fi/whatsmeow.
package engine
