// Package app runs one device of the indoor positioning network.
//
// A Node publishes and/or subscribes a discovery service. Peers introduce
// themselves with a name handshake:
//
//	subscriber                         publisher
//	    | <------- PeerDiscovered ---------- |
//	    | -------- NameRequest ------------> |  publisher tracks subscriber
//	    | <------- NameRequestAck ---------- |  subscriber tracks publisher
//	    | -------- Ping (every interval) --> |
//	    | <------- PingAck ----------------- |
//
// Tracked peers whose name matches a configured anchor are ranged
// continuously, and every round of distances is trilaterated into the
// node's own position.
package app
