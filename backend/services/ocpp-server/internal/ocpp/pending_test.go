package ocpp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPendingCallsResolve(t *testing.T) {
	pending := NewPendingCalls(zap.NewNop())
	if err := pending.Register("m-1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	go pending.Resolve("m-1", json.RawMessage(`{"status":"Accepted"}`))

	payload, err := pending.Wait(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if string(payload) != `{"status":"Accepted"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
	if pending.Len() != 0 {
		t.Fatalf("expected table to be empty, got %d", pending.Len())
	}
}

func TestPendingCallsReject(t *testing.T) {
	pending := NewPendingCalls(zap.NewNop())
	_ = pending.Register("m-2")
	pending.Reject("m-2", &CallError{Code: "InternalError", Description: "boom"})

	_, err := pending.Wait(context.Background(), "m-2")
	var callErr *CallError
	if !errors.As(err, &callErr) || callErr.Code != "InternalError" {
		t.Fatalf("expected call error, got %v", err)
	}
}

func TestPendingCallsTimeout(t *testing.T) {
	pending := NewPendingCalls(zap.NewNop())
	_ = pending.Register("m-3")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := pending.Wait(ctx, "m-3"); !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if pending.Len() != 0 {
		t.Fatalf("expected timed out waiter to be forgotten")
	}
	if pending.Resolve("m-3", json.RawMessage(`{}`)) {
		t.Fatalf("late response must be discarded")
	}
}

func TestPendingCallsCloseFailsWaiters(t *testing.T) {
	pending := NewPendingCalls(zap.NewNop())
	_ = pending.Register("a")
	_ = pending.Register("b")

	errCh := make(chan error, 2)
	for _, id := range []string{"a", "b"} {
		go func(id string) {
			_, err := pending.Wait(context.Background(), id)
			errCh <- err
		}(id)
	}

	pending.Close(nil)

	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			if !errors.Is(err, ErrConnectionClosed) {
				t.Fatalf("expected connection closed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("waiter not released by Close")
		}
	}

	if err := pending.Register("c"); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected register after close to fail, got %v", err)
	}
	if pending.Resolve("a", json.RawMessage(`{}`)) {
		t.Fatalf("response after close must be discarded")
	}
}

func TestPendingCallsUnknownID(t *testing.T) {
	pending := NewPendingCalls(zap.NewNop())
	if pending.Resolve("missing", json.RawMessage(`{}`)) {
		t.Fatalf("expected unknown id to be reported as unmatched")
	}
}
