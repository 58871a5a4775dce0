package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ChargingStation identifies the charger in a BootNotification.
type ChargingStation struct {
	Model           string `json:"model"`
	VendorName      string `json:"vendorName"`
	SerialNumber    string `json:"serialNumber,omitempty"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
}

// BootNotificationRequest payload.
type BootNotificationRequest struct {
	ChargingStation ChargingStation `json:"chargingStation"`
	Reason          string          `json:"reason"`
}

// BootNotificationResponse reply.
type BootNotificationResponse struct {
	CurrentTime time.Time `json:"currentTime"`
	Interval    int       `json:"interval"`
	Status      string    `json:"status"`
}

// HeartbeatResponse returns server time.
type HeartbeatResponse struct {
	CurrentTime time.Time `json:"currentTime"`
}

// StatusNotificationRequest payload. Timestamps stay strings, firmwares disagree on the format.
type StatusNotificationRequest struct {
	Timestamp       string `json:"timestamp"`
	ConnectorStatus string `json:"connectorStatus"`
	EVSEID          int    `json:"evseId"`
	ConnectorID     int    `json:"connectorId"`
}

// StatusNotificationResponse is empty (ack).
type StatusNotificationResponse struct{}

// EVSE addresses an outlet.
type EVSE struct {
	ID          int `json:"id"`
	ConnectorID int `json:"connectorId,omitempty"`
}

// IDToken carries an identity token.
type IDToken struct {
	IDToken string `json:"idToken"`
	Type    string `json:"type"`
}

// TransactionEventRequest payload. TransactionInfo and MeterValue stay raw: the state
// machine needs lenient field spelling and keeps the raw bytes for diagnostics.
type TransactionEventRequest struct {
	EventType       string          `json:"eventType"`
	Timestamp       string          `json:"timestamp"`
	TriggerReason   string          `json:"triggerReason"`
	SeqNo           int             `json:"seqNo"`
	TransactionInfo json.RawMessage `json:"transactionInfo,omitempty"`
	EVSE            *EVSE           `json:"evse,omitempty"`
	IDToken         *IDToken        `json:"idToken,omitempty"`
	MeterValue      json.RawMessage `json:"meterValue,omitempty"`
}

// TransactionEventResponse is empty (ack).
type TransactionEventResponse struct{}

// RequestStartTransactionRequest is sent to start charging remotely.
type RequestStartTransactionRequest struct {
	EVSEID        int     `json:"evseId"`
	IDToken       IDToken `json:"idToken"`
	RemoteStartID int64   `json:"remoteStartId"`
}

// RequestStopTransactionRequest is sent to stop a known transaction.
type RequestStopTransactionRequest struct {
	TransactionID string `json:"transactionId"`
}

// RequestStartStopResponse covers both remote start and stop replies.
type RequestStartStopResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
}

// TriggerMessageRequest asks the charger to emit a message.
type TriggerMessageRequest struct {
	RequestedMessage string `json:"requestedMessage"`
	EVSE             *EVSE  `json:"evse,omitempty"`
}

// TriggerMessageResponse reply.
type TriggerMessageResponse struct {
	Status string `json:"status"`
}

// TransactionInfo is the subset of transactionInfo the state machine reads. Both camelCase
// (wire) and snake_case spellings are accepted.
type TransactionInfo struct {
	TransactionID string
	ChargingState string
	StoppedReason string
}

// ParseTransactionInfo decodes raw transactionInfo. ok is false for absent or null input.
func ParseTransactionInfo(raw json.RawMessage) (TransactionInfo, bool, error) {
	if isNull(raw) {
		return TransactionInfo{}, false, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return TransactionInfo{}, false, err
	}
	return TransactionInfo{
		TransactionID: pickString(fields, "transactionId", "transaction_id"),
		ChargingState: pickString(fields, "chargingState", "charging_state"),
		StoppedReason: pickString(fields, "stoppedReason", "stopped_reason"),
	}, true, nil
}

// SampledValue is one measurement. Value stays raw since chargers send both numbers and
// numeric strings.
type SampledValue struct {
	Measurand  string
	Value      json.RawMessage
	Unit       string
	Multiplier int
}

// MeterValue groups sampled values taken at one instant.
type MeterValue struct {
	Timestamp     string
	SampledValues []SampledValue
}

// ParseMeterValues decodes a raw meterValue array leniently: groups or samples that are not
// objects are skipped rather than failing the whole batch.
func ParseMeterValues(raw json.RawMessage) ([]MeterValue, error) {
	if isNull(raw) {
		return nil, nil
	}
	var groups []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, err
	}

	result := make([]MeterValue, 0, len(groups))
	for _, group := range groups {
		mv := MeterValue{Timestamp: pickString(group, "timestamp")}
		var samples []json.RawMessage
		if err := json.Unmarshal(pick(group, "sampledValue", "sampled_value"), &samples); err != nil {
			result = append(result, mv)
			continue
		}
		for _, rawSample := range samples {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(rawSample, &fields); err != nil {
				continue
			}
			sv := SampledValue{
				Measurand: pickString(fields, "measurand"),
				Value:     pick(fields, "value"),
			}
			var uom map[string]json.RawMessage
			if err := json.Unmarshal(pick(fields, "unitOfMeasure", "unit_of_measure"), &uom); err == nil {
				sv.Unit = pickString(uom, "unit")
				if mult, err := strconv.Atoi(strings.TrimSpace(string(pick(uom, "multiplier")))); err == nil {
					sv.Multiplier = mult
				}
			}
			mv.SampledValues = append(mv.SampledValues, sv)
		}
		result = append(result, mv)
	}
	return result, nil
}

// Float returns the numeric value of the sample, accepting JSON numbers and numeric strings.
func (s SampledValue) Float() (float64, bool) {
	if isNull(s.Value) {
		return 0, false
	}
	var text string
	if err := json.Unmarshal(s.Value, &text); err != nil {
		text = string(s.Value)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func pick(fields map[string]json.RawMessage, names ...string) json.RawMessage {
	for _, name := range names {
		if v, ok := fields[name]; ok && !isNull(v) {
			return v
		}
	}
	return nil
}

// pickString reads a string field; numbers are returned in their JSON text form so numeric
// transaction ids survive.
func pickString(fields map[string]json.RawMessage, names ...string) string {
	raw := pick(fields, names...)
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		return string(trimmed)
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
