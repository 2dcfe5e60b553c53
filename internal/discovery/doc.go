// Package discovery orchestrates publish and subscribe sessions on a
// discovery radio.
//
// A Client validates service names, attaches to the radio lazily, opens
// sessions and turns each session's event stream into calls on the
// caller's callbacks. The state of every service name moves through
//
//	UNSTARTED → ATTACHING → PUBLISHING | SUBSCRIBING → TERMINATED
//
// ATTACHING is shared by all names while the attachment itself is being
// established: every Publish or Subscribe issued during that window is
// queued and its session is built once the attach completes, or it receives
// OnAttachedFailed if the attach fails.
//
// # Usage Example
//
//	client := discovery.NewClient(r, appCallback)
//	defer client.Close()
//
//	client.Subscribe("General", subCallback, nil)
//	// later, from OnServiceDiscovered:
//	client.SendMessage(radio.SubscribeMode, "General", peer, protocol.NextMessageID(), payload)
//
// # Threading
//
// Asynchronous notifications are delivered on one goroutine owned by the
// Client. Validation and unavailability failures, StopSession and the
// ranging toggles report synchronously on the caller's goroutine. Callbacks
// must not call Close.
package discovery
