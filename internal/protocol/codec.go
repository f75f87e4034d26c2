package protocol

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedFrame is returned when a wire message cannot be decoded into
// any frame variant. Malformed frames are dropped by the caller, never fatal.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// Control frames are single fixed strings.
const (
	rawHandshake           = "0"
	rawPing                = "2"
	rawPong                = "3"
	rawNamespaceConnect    = "40"
	rawNamespaceDisconnect = "41"
	eventPrefix            = "42"
)

// EncodeEvent encodes a named event frame: "42" + JSON([name]) or
// "42" + JSON([name, payload]) when a payload is given.
func EncodeEvent(name string, payload ...interface{}) ([]byte, error) {
	arr := make([]interface{}, 0, 2)
	arr = append(arr, name)
	if len(payload) > 0 {
		arr = append(arr, payload[0])
	}
	body, err := json.Marshal(arr)
	if err != nil {
		return nil, errors.Wrapf(err, "protocol: encode event %q", name)
	}
	out := make([]byte, 0, len(body)+2)
	out = append(out, eventPrefix...)
	out = append(out, body...)
	return out, nil
}

// EncodePing returns the keepalive ping frame.
func EncodePing() []byte { return []byte(rawPing) }

// EncodePong returns the keepalive pong frame.
func EncodePong() []byte { return []byte(rawPong) }

// Decode translates one raw wire message into a typed Frame. Dispatch is
// purely on prefix/content, in fixed precedence order:
//
//  1. exact "0"  → handshake
//  2. exact "2"  → ping
//  3. exact "3"  → pong
//  4. exact "40" → namespace connect
//  5. exact "41" → namespace disconnect
//  6. first byte 0x04 (control byte, not ASCII '4') → raw payload, rest is JSON
//  7. prefix "42" → event; element 0 of the JSON array is the event name if
//     it is a string, otherwise the whole array is an anonymous raw payload
//  8. otherwise the whole message is tried as JSON and becomes a raw payload
//
// On any JSON parse failure no frame is produced and ErrMalformedFrame is
// returned; the error never escalates past the codec boundary.
func Decode(raw string) (Frame, error) {
	switch raw {
	case rawHandshake:
		return Frame{Type: FrameHandshake}, nil
	case rawPing:
		return Frame{Type: FramePing}, nil
	case rawPong:
		return Frame{Type: FramePong}, nil
	case rawNamespaceConnect:
		return Frame{Type: FrameNamespaceConnect}, nil
	case rawNamespaceDisconnect:
		return Frame{Type: FrameNamespaceDisconnect}, nil
	}

	if len(raw) > 0 && raw[0] == 0x04 {
		var payload interface{}
		if err := json.UnmarshalFromString(raw[1:], &payload); err != nil {
			return Frame{}, errors.Wrap(ErrMalformedFrame, "control-byte payload")
		}
		return Frame{Type: FrameRawPayload, Payload: payload, ControlFramed: true}, nil
	}

	if len(raw) >= 2 && raw[:2] == eventPrefix {
		var arr []interface{}
		if err := json.UnmarshalFromString(raw[2:], &arr); err != nil {
			return Frame{}, errors.Wrap(ErrMalformedFrame, "event body")
		}
		if len(arr) == 0 {
			return Frame{}, errors.Wrap(ErrMalformedFrame, "empty event array")
		}
		name, ok := arr[0].(string)
		if !ok {
			// Anonymous event array: treat the whole array as a raw payload.
			return Frame{Type: FrameRawPayload, Payload: arr}, nil
		}
		var payload interface{}
		if len(arr) > 1 {
			payload = arr[1]
		}
		return Frame{Type: FrameEvent, Name: name, Payload: payload}, nil
	}

	// Last resort: some messages arrive as bare JSON with no framing prefix.
	var payload interface{}
	if err := json.UnmarshalFromString(raw, &payload); err != nil {
		return Frame{}, errors.Wrap(ErrMalformedFrame, "unframed payload")
	}
	return Frame{Type: FrameRawPayload, Payload: payload}, nil
}
