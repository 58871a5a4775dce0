package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/notifier"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
	"chargerlink/backend/services/ocpp-server/internal/service"
)

func TestBootNotificationAccepts(t *testing.T) {
	handler := NewBootNotificationHandler(60*time.Second, zap.NewNop())

	resp, err := handler(context.Background(), "CP-1", json.RawMessage(`{"chargingStation":{"model":"AU101","vendor_name":"Elecq"},"reason":"PowerUp"}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	boot, ok := resp.(protocol.BootNotificationResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", resp)
	}
	if boot.Status != protocol.RegistrationAccepted || boot.Interval != 60 {
		t.Fatalf("unexpected response %+v", boot)
	}
	if boot.CurrentTime.Location() != time.UTC || time.Since(boot.CurrentTime) > time.Minute {
		t.Fatalf("expected current UTC time, got %v", boot.CurrentTime)
	}
}

func TestBootNotificationToleratesGarbage(t *testing.T) {
	handler := NewBootNotificationHandler(60*time.Second, zap.NewNop())
	resp, err := handler(context.Background(), "CP-1", json.RawMessage(`{"chargingStation":"nope"}`))
	if err != nil {
		t.Fatalf("boot must always be accepted, got %v", err)
	}
	if resp.(protocol.BootNotificationResponse).Status != protocol.RegistrationAccepted {
		t.Fatalf("expected accepted boot")
	}
}

func TestHeartbeatReturnsTime(t *testing.T) {
	resp, err := NewHeartbeatHandler()(context.Background(), "CP-1", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if resp.(protocol.HeartbeatResponse).CurrentTime.IsZero() {
		t.Fatalf("expected current time")
	}
}

func TestStatusNotificationUpdatesState(t *testing.T) {
	state := service.NewStateMachine(notifier.New(zap.NewNop()), zap.NewNop())
	handler := NewStatusNotificationHandler(state, zap.NewNop())

	_, err := handler(context.Background(), "CP-1", json.RawMessage(`{"timestamp":"2024-05-01T12:00:00.000Z","connectorStatus":"Occupied","evseId":1,"connectorId":1}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if st := state.Snapshot(); !st.PluggedIn || st.LastStatus != "Occupied" {
		t.Fatalf("unexpected state %+v", st)
	}

	if _, err := handler(context.Background(), "CP-1", json.RawMessage(`{"connectorStatus":5}`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestTransactionEventUpdatesState(t *testing.T) {
	state := service.NewStateMachine(notifier.New(zap.NewNop()), zap.NewNop())
	handler := NewTransactionEventHandler(state, zap.NewNop())

	payload := json.RawMessage(`{
		"eventType":"Started",
		"timestamp":"2024-05-01T12:00:00Z",
		"triggerReason":"RemoteStart",
		"seqNo":0,
		"transactionInfo":{"transactionId":"tx-9","chargingState":"Charging"},
		"evse":{"id":1,"connectorId":1},
		"meterValue":[{"timestamp":"2024-05-01T12:00:00Z","sampledValue":[{"value":3500,"measurand":"Power.Active.Import","unitOfMeasure":{"unit":"W"}}]}]
	}`)
	if _, err := handler(context.Background(), "CP-1", payload); err != nil {
		t.Fatalf("handler: %v", err)
	}

	st := state.Snapshot()
	if !st.Charging || st.TransactionID != "tx-9" || !st.SessionActive() {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.PowerKW == nil || *st.PowerKW != 3.5 {
		t.Fatalf("expected 3.5 kW, got %v", st.PowerKW)
	}
}
