// Package protocol implements the peer-to-peer application message format.
//
// Messages exchanged between discovered peers are flat UTF-8 strings made of
// three fields joined by a pipe:
//
//	deviceName|requestType|message
//
// The request type is a small integer:
//   - 1  name request
//   - 11 name request acknowledgement
//   - 2  ping
//   - 22 ping acknowledgement
//   - 3  chat
//
// # Usage Example - Encoding
//
//	msg := protocol.Message{DeviceName: "pixel-7", RequestType: protocol.Ping, Body: "2"}
//	client.SendMessage(radio.SubscribeMode, "General", peer, protocol.NextMessageID(), msg.Encode())
//
// # Usage Example - Decoding
//
//	msg, err := protocol.Decode(raw)
//	if err != nil {
//	    // drop the frame or disconnect the peer
//	}
//
// # Error Handling
//
// Decoding never produces partial data. A frame with the wrong number of
// fields, a non-numeric request type or invalid UTF-8 fails with a
// *FormatError that wraps ErrMalformedMessage.
//
// A body containing the delimiter cannot be decoded: the frame splits into
// more than three fields and is rejected.
//
// # Timing
//
// PingInterval and PeerTimeout are policy values for the code that keeps
// peers alive; the codec itself does not enforce them.
package protocol
