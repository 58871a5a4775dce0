package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseTransactionInfoAcceptsBothSpellings(t *testing.T) {
	camel, ok, err := ParseTransactionInfo(json.RawMessage(`{"transactionId":"tx-1","chargingState":"Charging","stoppedReason":"Local"}`))
	if err != nil || !ok {
		t.Fatalf("parse camelCase: ok=%v err=%v", ok, err)
	}
	if camel.TransactionID != "tx-1" || camel.ChargingState != "Charging" || camel.StoppedReason != "Local" {
		t.Fatalf("unexpected camelCase result: %+v", camel)
	}

	snake, ok, err := ParseTransactionInfo(json.RawMessage(`{"transaction_id":42,"charging_state":"Idle","stopped_reason":"EVDisconnected"}`))
	if err != nil || !ok {
		t.Fatalf("parse snake_case: ok=%v err=%v", ok, err)
	}
	if snake.TransactionID != "42" || snake.ChargingState != "Idle" || snake.StoppedReason != "EVDisconnected" {
		t.Fatalf("unexpected snake_case result: %+v", snake)
	}
}

func TestParseTransactionInfoAbsent(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		_, ok, err := ParseTransactionInfo(json.RawMessage(raw))
		if err != nil || ok {
			t.Fatalf("expected absent info for %q, got ok=%v err=%v", raw, ok, err)
		}
	}
	if _, _, err := ParseTransactionInfo(json.RawMessage(`[1,2]`)); err == nil {
		t.Fatalf("expected error for non-object transactionInfo")
	}
}

func TestParseMeterValuesLenient(t *testing.T) {
	raw := json.RawMessage(`[
		{"timestamp":"2025-01-01T00:00:00Z","sampledValue":[
			{"value":"3500","measurand":"Power.Active.Import","unitOfMeasure":{"unit":"W","multiplier":0}},
			{"value":12.5,"measurand":"Energy.Active.Import.Register","unitOfMeasure":{"unit":"kWh"}},
			"garbage",
			{"value":"n/a","measurand":"Power.Active.Import"}
		]},
		{"timestamp":"2025-01-01T00:00:10Z","sampled_value":[
			{"value":2,"measurand":"Power.Active.Import","unit_of_measure":{"unit":"kW","multiplier":1}}
		]},
		{"timestamp":"2025-01-01T00:00:20Z"}
	]`)

	groups, err := ParseMeterValues(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if len(groups[0].SampledValues) != 3 {
		t.Fatalf("expected non-object sample to be skipped, got %d samples", len(groups[0].SampledValues))
	}

	first := groups[0].SampledValues[0]
	if v, ok := first.Float(); !ok || v != 3500 || first.Unit != "W" {
		t.Fatalf("unexpected first sample: %+v (%v, %v)", first, v, ok)
	}
	if v, ok := groups[0].SampledValues[1].Float(); !ok || v != 12.5 {
		t.Fatalf("expected numeric value 12.5, got %v %v", v, ok)
	}
	if _, ok := groups[0].SampledValues[2].Float(); ok {
		t.Fatalf("expected non-numeric value to be rejected")
	}

	snake := groups[1].SampledValues[0]
	if snake.Unit != "kW" || snake.Multiplier != 1 {
		t.Fatalf("unexpected snake_case sample: %+v", snake)
	}
	if len(groups[2].SampledValues) != 0 {
		t.Fatalf("expected empty group")
	}
}

func TestParseMeterValuesRejectsNonArray(t *testing.T) {
	if _, err := ParseMeterValues(json.RawMessage(`{"sampledValue":[]}`)); err == nil {
		t.Fatalf("expected error for object meterValue")
	}
	groups, err := ParseMeterValues(nil)
	if err != nil || groups != nil {
		t.Fatalf("expected nil for absent meterValue, got %v %v", groups, err)
	}
}
