package ocpp

import (
	"encoding/json"
	"errors"
	"testing"

	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

func TestDecodeEnvelopeKinds(t *testing.T) {
	call, err := Decode([]byte(`[2,"m-1","Heartbeat",{}]`))
	if err != nil {
		t.Fatalf("decode call: %v", err)
	}
	if call.MessageType != protocol.MessageTypeCall || call.MessageID != "m-1" || call.Action != "Heartbeat" {
		t.Fatalf("unexpected call envelope: %+v", call)
	}

	result, err := Decode([]byte(`[3,"m-2",{"status":"Accepted"}]`))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.MessageType != protocol.MessageTypeCallResult || string(result.Payload) != `{"status":"Accepted"}` {
		t.Fatalf("unexpected result envelope: %+v", result)
	}

	callErr, err := Decode([]byte(`[4,"m-3","NotSupported","nope",{"hint":1}]`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if callErr.Error == nil || callErr.Error.Code != "NotSupported" || callErr.Error.Description != "nope" {
		t.Fatalf("unexpected error envelope: %+v", callErr)
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	frames := []string{
		`not json`,
		`{"a":1}`,
		`[2,"m-1"]`,
		`[2,"m-1","Heartbeat"]`,
		`[2,"m-1","Heartbeat",{},{}]`,
		`[2,"m-1",7,{}]`,
		`[2,"m-1","Heartbeat","payload"]`,
		`[2,"","Heartbeat",{}]`,
		`[3,"m-1",{},{}]`,
		`[3,"m-1",[1]]`,
		`[4,"m-1","Code","desc"]`,
		`[4,"m-1",5,"desc",{}]`,
		`[5,"m-1",{}]`,
		`["2","m-1","Heartbeat",{}]`,
	}
	for _, frame := range frames {
		if _, err := Decode([]byte(frame)); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("frame %s: expected ErrMalformedMessage, got %v", frame, err)
		}
	}
}

func TestEncodeCallGeneratesUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, frame, err := EncodeCall(protocol.ActionTriggerMessage, protocol.TriggerMessageRequest{RequestedMessage: "StatusNotification"})
		if err != nil {
			t.Fatalf("encode call: %v", err)
		}
		if seen[id] {
			t.Fatalf("message id %s repeated", id)
		}
		seen[id] = true

		env, err := Decode(frame)
		if err != nil {
			t.Fatalf("decode own frame: %v", err)
		}
		if env.MessageID != id || env.Action != protocol.ActionTriggerMessage {
			t.Fatalf("unexpected envelope %+v", env)
		}
	}
}

func TestEncodeResultWithNilPayloadIsEmptyObject(t *testing.T) {
	frame, err := EncodeResult("m-9", nil)
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	if string(frame) != `[3,"m-9",{}]` {
		t.Fatalf("unexpected frame %s", frame)
	}
}

func TestEncodeErrorShape(t *testing.T) {
	frame, err := EncodeError("m-4", protocol.ErrorCodeNotImplemented, "unknown action")
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(frame, &parts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(parts) != 5 || string(parts[0]) != "4" || string(parts[4]) != "{}" {
		t.Fatalf("unexpected call error frame %s", frame)
	}
}
