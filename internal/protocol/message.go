package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Delimiter separates the three fields of an encoded message.
const Delimiter = "|"

// fieldCount is the number of fields in a well-formed frame.
const fieldCount = 3

const (
	// PingInterval is how often a subscriber pings each known peer.
	PingInterval = 10 * time.Second

	// PeerTimeout is how long a peer may stay silent before it is dropped.
	PeerTimeout = 30 * time.Second
)

// RequestType identifies the purpose of a message. The values are part of
// the wire contract.
type RequestType int

const (
	NameRequest    RequestType = 1
	Ping           RequestType = 2
	Chat           RequestType = 3
	NameRequestAck RequestType = 11
	PingAck        RequestType = 22
)

// String returns a human-readable request type name
func (t RequestType) String() string {
	switch t {
	case NameRequest:
		return "name_request"
	case Ping:
		return "ping"
	case Chat:
		return "chat"
	case NameRequestAck:
		return "name_request_ack"
	case PingAck:
		return "ping_ack"
	default:
		return fmt.Sprintf("RequestType(%d)", int(t))
	}
}

// Known reports whether t is one of the request types defined by the protocol.
func (t RequestType) Known() bool {
	switch t {
	case NameRequest, Ping, Chat, NameRequestAck, PingAck:
		return true
	}
	return false
}

// Message is a single application message exchanged with a peer.
type Message struct {
	DeviceName  string
	RequestType RequestType
	Body        string
}

// Encode joins the message fields with Delimiter and returns the UTF-8 bytes.
func (m Message) Encode() []byte {
	return []byte(strings.Join([]string{
		m.DeviceName,
		strconv.Itoa(int(m.RequestType)),
		m.Body,
	}, Delimiter))
}

// String returns a debug representation of the message
func (m Message) String() string {
	return fmt.Sprintf("Message{Device=%q, Type=%s, Body=%q}", m.DeviceName, m.RequestType, m.Body)
}

// ErrMalformedMessage is wrapped by every decoding failure.
var ErrMalformedMessage = errors.New("malformed message")

// FormatError describes why a frame could not be decoded.
type FormatError struct {
	Reason string
	Frame  []byte
	Err    error
}

// Error implements the error interface
func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", ErrMalformedMessage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedMessage, e.Reason)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedMessage, e.Err}
	}
	return []error{ErrMalformedMessage}
}

// Decode parses a frame produced by Encode.
//
// The frame is split on every delimiter; exactly three fields are required
// and the second must be a base-10 integer.
func Decode(data []byte) (Message, error) {
	if !utf8.Valid(data) {
		return Message{}, &FormatError{Reason: "frame is not valid UTF-8", Frame: data}
	}

	parts := strings.Split(string(data), Delimiter)
	if len(parts) != fieldCount {
		return Message{}, &FormatError{
			Reason: fmt.Sprintf("expected %d fields, got %d", fieldCount, len(parts)),
			Frame:  data,
		}
	}

	requestType, err := strconv.Atoi(parts[1])
	if err != nil {
		return Message{}, &FormatError{
			Reason: fmt.Sprintf("request type %q is not numeric", parts[1]),
			Frame:  data,
			Err:    err,
		}
	}

	return Message{
		DeviceName:  parts[0],
		RequestType: RequestType(requestType),
		Body:        parts[2],
	}, nil
}
