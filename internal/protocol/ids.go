package protocol

import "sync/atomic"

var messageIDCounter atomic.Int32

// NextMessageID returns a process-wide message id for DiscoverySession sends.
// Ids correlate send results with the message that produced them. Zero is
// never returned; the counter wraps back to 1 after math.MaxInt32.
func NextMessageID() int {
	for {
		id := messageIDCounter.Add(1)
		if id > 0 {
			return int(id)
		}
		// Overflowed into the negative range.
		messageIDCounter.CompareAndSwap(id, 0)
	}
}
