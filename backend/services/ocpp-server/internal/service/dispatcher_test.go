package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/notifier"
	"chargerlink/backend/services/ocpp-server/internal/ocpp"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

type sentCall struct {
	action  string
	payload json.RawMessage
}

type fakeCaller struct {
	mu        sync.Mutex
	connected bool
	reply     json.RawMessage
	err       error
	block     bool
	calls     []sentCall
}

func (f *fakeCaller) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeCaller) Call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	body, _ := json.Marshal(payload)
	f.mu.Lock()
	f.calls = append(f.calls, sentCall{action: action, payload: body})
	block, reply, err := f.block, f.reply, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ocpp.ErrCallTimeout
	}
	return reply, err
}

func (f *fakeCaller) sent() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.calls...)
}

func newTestDispatcher(caller *fakeCaller) (*Dispatcher, *StateMachine) {
	state := NewStateMachine(notifier.New(zap.NewNop()), zap.NewNop())
	d := NewDispatcher(caller, state, DispatcherConfig{EVSEID: 1, IDToken: "ElecqAutoStart", CallTimeout: time.Second}, zap.NewNop())
	d.now = func() time.Time { return time.Unix(1714564800, 0) }
	return d, state
}

func TestRequestStartWithoutSessionFailsFast(t *testing.T) {
	caller := &fakeCaller{}
	d, _ := newTestDispatcher(caller)

	if d.RequestStart(context.Background()) {
		t.Fatalf("expected start to fail without a session")
	}
	if len(caller.sent()) != 0 {
		t.Fatalf("no call must be sent without a session")
	}
}

func TestRequestStartAccepted(t *testing.T) {
	caller := &fakeCaller{connected: true, reply: json.RawMessage(`{"status":"Accepted"}`)}
	d, state := newTestDispatcher(caller)
	state.MarkRemoteStopAccepted()

	if !d.RequestStart(context.Background()) {
		t.Fatalf("expected start to be accepted")
	}

	calls := caller.sent()
	if len(calls) != 1 || calls[0].action != protocol.ActionRequestStartTransaction {
		t.Fatalf("unexpected calls %+v", calls)
	}
	var req protocol.RequestStartTransactionRequest
	if err := json.Unmarshal(calls[0].payload, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.EVSEID != 1 || req.IDToken.IDToken != "ElecqAutoStart" || req.IDToken.Type != "Local" || req.RemoteStartID != 1714564800 {
		t.Fatalf("unexpected request %+v", req)
	}

	st := state.Snapshot()
	if st.RemoteStopRequested {
		t.Fatalf("accepted start must clear the stop latch")
	}
	if st.Charging {
		t.Fatalf("accepted start must wait for the charger to report charging")
	}
}

func TestRequestStartRejected(t *testing.T) {
	caller := &fakeCaller{connected: true, reply: json.RawMessage(`{"status":"Rejected"}`)}
	d, state := newTestDispatcher(caller)
	state.MarkRemoteStopAccepted()

	if d.RequestStart(context.Background()) {
		t.Fatalf("expected rejected start to report false")
	}
	if !state.Snapshot().RemoteStopRequested {
		t.Fatalf("rejected start must not touch the stop latch")
	}
}

func TestRequestStartTransportFailures(t *testing.T) {
	for _, err := range []error{ocpp.ErrConnectionClosed, &ocpp.CallError{Code: "InternalError"}, errors.New("boom")} {
		caller := &fakeCaller{connected: true, err: err}
		d, _ := newTestDispatcher(caller)
		if d.RequestStart(context.Background()) {
			t.Fatalf("%v: expected false", err)
		}
	}
}

func TestRequestStartTimesOut(t *testing.T) {
	caller := &fakeCaller{connected: true, block: true}
	d, _ := newTestDispatcher(caller)
	d.cfg.CallTimeout = 20 * time.Millisecond

	start := time.Now()
	if d.RequestStart(context.Background()) {
		t.Fatalf("expected timeout to read as false")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("call was not bounded by the timeout")
	}
}

func TestRequestStopNeedsTransaction(t *testing.T) {
	caller := &fakeCaller{connected: true, reply: json.RawMessage(`{"status":"Accepted"}`)}
	d, _ := newTestDispatcher(caller)

	if d.RequestStop(context.Background()) {
		t.Fatalf("expected stop without transaction id to fail")
	}
	if len(caller.sent()) != 0 {
		t.Fatalf("no call must be sent without a transaction id")
	}
}

func TestRequestStopAcceptedIsOptimistic(t *testing.T) {
	caller := &fakeCaller{connected: true, reply: json.RawMessage(`{"status":"Accepted"}`)}
	d, state := newTestDispatcher(caller)
	state.ApplyStatusNotification("Occupied")
	state.ApplyTransactionEvent(TransactionEvent{EventType: "Started", TransactionInfo: json.RawMessage(`{"transactionId":"tx-42","chargingState":"Charging"}`)})

	if !d.RequestStop(context.Background()) {
		t.Fatalf("expected stop to be accepted")
	}

	calls := caller.sent()
	if len(calls) != 1 || calls[0].action != protocol.ActionRequestStopTransaction || string(calls[0].payload) != `{"transactionId":"tx-42"}` {
		t.Fatalf("unexpected calls %+v", calls)
	}

	st := state.Snapshot()
	if !st.RemoteStopRequested || st.Charging {
		t.Fatalf("expected latched stop and charging=false, got %+v", st)
	}

	state.ApplyTransactionEvent(TransactionEvent{EventType: "Updated", TransactionInfo: json.RawMessage(`{"transactionId":"tx-42","chargingState":"Charging"}`)})
	if state.Snapshot().Charging {
		t.Fatalf("charger report must not resume charging after accepted stop")
	}
}

func TestRequestStopRejectedKeepsCharging(t *testing.T) {
	caller := &fakeCaller{connected: true, reply: json.RawMessage(`{"status":"Rejected"}`)}
	d, state := newTestDispatcher(caller)
	state.ApplyTransactionEvent(TransactionEvent{EventType: "Started", TransactionInfo: json.RawMessage(`{"transactionId":"tx-43","chargingState":"Charging"}`)})

	if d.RequestStop(context.Background()) {
		t.Fatalf("expected rejected stop to report false")
	}
	if st := state.Snapshot(); !st.Charging || st.RemoteStopRequested {
		t.Fatalf("rejected stop must not change state, got %+v", st)
	}
}

func TestRequestRefreshSendsTrigger(t *testing.T) {
	caller := &fakeCaller{connected: true, reply: json.RawMessage(`{"status":"Accepted"}`)}
	d, _ := newTestDispatcher(caller)

	d.RequestRefresh(context.Background())

	calls := caller.sent()
	if len(calls) != 1 || calls[0].action != protocol.ActionTriggerMessage {
		t.Fatalf("unexpected calls %+v", calls)
	}
	if string(calls[0].payload) != `{"requestedMessage":"StatusNotification"}` {
		t.Fatalf("trigger must not carry an evse, got %s", calls[0].payload)
	}
}

func TestRequestRefreshSwallowsFailures(t *testing.T) {
	d, _ := newTestDispatcher(&fakeCaller{connected: true, err: ocpp.ErrConnectionClosed})
	d.RequestRefresh(context.Background())

	idle := &fakeCaller{}
	d, _ = newTestDispatcher(idle)
	d.RequestRefresh(context.Background())
	if len(idle.sent()) != 0 {
		t.Fatalf("refresh without a session must not send")
	}
}

func TestOutcomeClassification(t *testing.T) {
	cases := map[string]error{
		"timeout":  ocpp.ErrCallTimeout,
		"closed":   ocpp.ErrConnectionClosed,
		"rejected": &ocpp.CallError{Code: "NotSupported"},
		"error":    errors.New("other"),
	}
	for want, err := range cases {
		if got := outcome(err); got != want {
			t.Fatalf("%v: expected %s, got %s", err, want, got)
		}
	}
}

func TestChargerFacade(t *testing.T) {
	caller := &fakeCaller{connected: true, reply: json.RawMessage(`{"status":"Accepted"}`)}
	d, state := newTestDispatcher(caller)
	charger := NewCharger(state, d, caller)

	notified := 0
	unsubscribe := charger.Subscribe(func() { notified++ })
	state.ApplyStatusNotification("Occupied")
	unsubscribe()
	state.ApplyStatusNotification("Occupied")

	if notified != 1 {
		t.Fatalf("expected one notification, got %d", notified)
	}
	if !charger.IsConnected() || !charger.State().PluggedIn {
		t.Fatalf("facade does not reflect state")
	}
	if !charger.RequestStart(context.Background()) {
		t.Fatalf("expected start through facade")
	}
}
