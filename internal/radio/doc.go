// Package radio defines the contracts of the discovery and ranging radios.
//
// The core packages (discovery, ranging) only talk to the types declared
// here. Implementations live in subpackages: sim is an in-memory air used by
// tests and the simulate command, lan maps the same contract onto mDNS and
// WebSocket connections on a local network.
//
// # Sessions
//
// An Attachment opens publish and subscribe sessions. Each session reports
// everything that happens to it as a stream of Event values on one channel:
//
//	events := att.Subscribe(radio.SubscribeConfig{ServiceName: "General"})
//	for ev := range events {
//	    switch e := ev.(type) {
//	    case radio.Started:
//	        sess = e.Session.(radio.SubscribeSession)
//	    case radio.PeerDiscovered:
//	        sess.SendMessage(e.Peer, 1, []byte("hello"))
//	    case radio.Terminated:
//	    }
//	}
//
// A session that fails to start emits Terminated without Started.
package radio
