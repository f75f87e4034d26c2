// Package protocol implements the framed text protocol spoken by the
// platform's streaming endpoint. Each wire message is one text frame:
// single-character control frames for handshake and keepalive, "42"-prefixed
// named events, and a control-byte framing used for large undelimited
// payloads.
package protocol

// FrameType identifies the decoded frame variant.
type FrameType int

const (
	FrameHandshake FrameType = iota
	FramePing
	FramePong
	FrameNamespaceConnect
	FrameNamespaceDisconnect
	FrameEvent
	FrameRawPayload
)

func (t FrameType) String() string {
	switch t {
	case FrameHandshake:
		return "handshake"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	case FrameNamespaceConnect:
		return "namespace_connect"
	case FrameNamespaceDisconnect:
		return "namespace_disconnect"
	case FrameEvent:
		return "event"
	case FrameRawPayload:
		return "raw_payload"
	}
	return "unknown"
}

// Frame is one decoded unit of the wire protocol. Frames are immutable:
// created by the codec, consumed once by the dispatcher.
type Frame struct {
	Type FrameType

	// Name is the event name for FrameEvent frames, empty otherwise.
	Name string

	// Payload is the decoded JSON payload for FrameEvent and FrameRawPayload
	// frames: map[string]interface{}, []interface{}, float64, string, bool
	// or nil.
	Payload interface{}

	// ControlFramed is true when the frame arrived via the control-byte
	// framing (first byte 0x04) rather than a "42" event. The dispatcher's
	// classification rules treat large arrays from this framing differently.
	ControlFramed bool
}
