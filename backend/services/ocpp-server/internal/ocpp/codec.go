package ocpp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

var (
	// ErrMalformedMessage marks a frame that is not a valid OCPP-J envelope.
	ErrMalformedMessage = errors.New("ocpp: malformed message")
	// ErrProtocolViolation marks a peer that did not negotiate the expected sub-protocol.
	ErrProtocolViolation = errors.New("ocpp: protocol violation")
	// ErrCallTimeout is returned when an outbound call gets no answer in time.
	ErrCallTimeout = errors.New("ocpp: call timed out")
	// ErrConnectionClosed is returned for calls on, or pending on, a closed connection.
	ErrConnectionClosed = errors.New("ocpp: connection closed")
)

// CallError is a CALLERROR frame returned by the charger.
type CallError struct {
	Code        string
	Description string
	Details     json.RawMessage
}

func (e *CallError) Error() string {
	return fmt.Sprintf("ocpp: call error %s: %s", e.Code, e.Description)
}

// Envelope represents a decoded OCPP-J frame of any kind.
type Envelope struct {
	MessageType int
	MessageID   string
	Action      string          // CALL only
	Payload     json.RawMessage // CALL and CALLRESULT
	Error       *CallError      // CALLERROR only
}

// idGenerator is swapped in tests for deterministic ids.
var idGenerator = uuid.NewString

// Decode parses raw bytes into an Envelope. Every failure wraps ErrMalformedMessage.
func Decode(data []byte) (*Envelope, error) {
	var array []json.RawMessage
	if err := json.Unmarshal(data, &array); err != nil {
		return nil, malformed("not a JSON array: %v", err)
	}
	if len(array) < 3 {
		return nil, malformed("frame has %d elements", len(array))
	}

	var msgType int
	if err := json.Unmarshal(array[0], &msgType); err != nil {
		return nil, malformed("read message type: %v", err)
	}

	env := &Envelope{MessageType: msgType}
	if err := decodeString(array[1], &env.MessageID); err != nil || env.MessageID == "" {
		return nil, malformed("read message id")
	}

	switch msgType {
	case protocol.MessageTypeCall:
		if len(array) != 4 {
			return nil, malformed("CALL frame has %d elements", len(array))
		}
		if err := decodeString(array[2], &env.Action); err != nil || env.Action == "" {
			return nil, malformed("read action")
		}
		if !isObject(array[3]) {
			return nil, malformed("CALL payload is not an object")
		}
		env.Payload = array[3]
	case protocol.MessageTypeCallResult:
		if len(array) != 3 {
			return nil, malformed("CALLRESULT frame has %d elements", len(array))
		}
		if !isObject(array[2]) {
			return nil, malformed("CALLRESULT payload is not an object")
		}
		env.Payload = array[2]
	case protocol.MessageTypeCallError:
		if len(array) != 5 {
			return nil, malformed("CALLERROR frame has %d elements", len(array))
		}
		callErr := &CallError{Details: array[4]}
		if err := decodeString(array[2], &callErr.Code); err != nil {
			return nil, malformed("read error code")
		}
		if err := decodeString(array[3], &callErr.Description); err != nil {
			return nil, malformed("read error description")
		}
		env.Error = callErr
	default:
		return nil, malformed("unsupported message type %d", msgType)
	}

	return env, nil
}

// EncodeCall builds a CALL frame with a fresh message id.
func EncodeCall(action string, payload interface{}) (string, []byte, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return "", nil, err
	}
	messageID := idGenerator()
	frame, err := json.Marshal([]interface{}{protocol.MessageTypeCall, messageID, action, body})
	if err != nil {
		return "", nil, err
	}
	return messageID, frame, nil
}

// EncodeResult builds a CALLRESULT frame.
func EncodeResult(messageID string, payload interface{}) ([]byte, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]interface{}{protocol.MessageTypeCallResult, messageID, body})
}

// EncodeError builds a CALLERROR frame with empty details.
func EncodeError(messageID, code, description string) ([]byte, error) {
	return json.Marshal([]interface{}{protocol.MessageTypeCallError, messageID, code, description, map[string]string{}})
}

// DecodePayload is a convenience helper for handlers.
func DecodePayload[T any](payload json.RawMessage) (T, error) {
	var target T
	if err := json.Unmarshal(payload, &target); err != nil {
		var zero T
		return zero, err
	}
	return target, nil
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ocpp: encode payload: %w", err)
	}
	return body, nil
}

func decodeString(raw json.RawMessage, target *string) error {
	return json.Unmarshal(raw, target)
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
