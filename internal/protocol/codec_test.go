package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecode_ControlFrames(t *testing.T) {
	cases := []struct {
		raw  string
		want FrameType
	}{
		{"0", FrameHandshake},
		{"2", FramePing},
		{"3", FramePong},
		{"40", FrameNamespaceConnect},
		{"41", FrameNamespaceDisconnect},
	}
	for _, tc := range cases {
		f, err := Decode(tc.raw)
		if err != nil {
			t.Fatalf("Decode(%q): %v", tc.raw, err)
		}
		if f.Type != tc.want {
			t.Errorf("Decode(%q).Type = %v, want %v", tc.raw, f.Type, tc.want)
		}
	}
}

func TestDecode_NamedEvent(t *testing.T) {
	f, err := Decode(`42["tick",["EURUSD",1700000000,1.1000]]`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != FrameEvent {
		t.Fatalf("Type = %v, want event", f.Type)
	}
	if f.Name != "tick" {
		t.Errorf("Name = %q, want tick", f.Name)
	}
	want := []interface{}{"EURUSD", float64(1700000000), 1.1}
	if !reflect.DeepEqual(f.Payload, want) {
		t.Errorf("Payload = %#v, want %#v", f.Payload, want)
	}
}

func TestDecode_EventWithoutPayload(t *testing.T) {
	f, err := Decode(`42["tick"]`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != FrameEvent || f.Name != "tick" {
		t.Fatalf("got %v/%q, want event/tick", f.Type, f.Name)
	}
	if f.Payload != nil {
		t.Errorf("Payload = %#v, want nil", f.Payload)
	}
}

func TestDecode_EventNonStringHeadIsRawPayload(t *testing.T) {
	f, err := Decode(`42[[1,2],[3,4]]`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != FrameRawPayload {
		t.Fatalf("Type = %v, want raw payload", f.Type)
	}
	if f.ControlFramed {
		t.Error("event-framed anonymous array must not be flagged control-framed")
	}
	arr, ok := f.Payload.([]interface{})
	if !ok || len(arr) != 2 {
		t.Errorf("Payload = %#v, want whole two-element array", f.Payload)
	}
}

func TestDecode_ControlByteFraming(t *testing.T) {
	f, err := Decode("\x04{\"asset\":\"EURUSD_otc\",\"period\":60}")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != FrameRawPayload || !f.ControlFramed {
		t.Fatalf("got type=%v controlFramed=%v, want raw payload via control framing", f.Type, f.ControlFramed)
	}
	obj, ok := f.Payload.(map[string]interface{})
	if !ok || obj["asset"] != "EURUSD_otc" {
		t.Errorf("Payload = %#v", f.Payload)
	}
}

func TestDecode_ControlByteDistinctFromDigitFour(t *testing.T) {
	// ASCII '4' with no known second digit is not the control byte; the
	// whole string fails JSON parsing and must be dropped.
	if _, err := Decode("4junk"); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestDecode_BareJSONFallback(t *testing.T) {
	f, err := Decode(`{"signals":[]}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != FrameRawPayload {
		t.Fatalf("Type = %v, want raw payload", f.Type)
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	for _, raw := range []string{`42["tick`, "\x04{bad", "not json at all", "42", ""} {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("Decode(%q) err = %v, want ErrMalformedFrame", raw, err)
		}
	}
}

func TestEncodeEvent(t *testing.T) {
	b, err := EncodeEvent("tick")
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	if string(b) != `42["tick"]` {
		t.Errorf("EncodeEvent(tick) = %s", b)
	}

	b, err = EncodeEvent("instruments/update", map[string]interface{}{"asset": "EURUSD", "period": 60})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	f, err := Decode(string(b))
	if err != nil {
		t.Fatalf("round trip decode: %v", err)
	}
	if f.Name != "instruments/update" {
		t.Errorf("round trip name = %q", f.Name)
	}
	obj, ok := f.Payload.(map[string]interface{})
	if !ok || obj["asset"] != "EURUSD" {
		t.Errorf("round trip payload = %#v", f.Payload)
	}
}

func TestEncodeKeepalive(t *testing.T) {
	if string(EncodePing()) != "2" {
		t.Errorf("EncodePing = %q", EncodePing())
	}
	if string(EncodePong()) != "3" {
		t.Errorf("EncodePong = %q", EncodePong())
	}
}
