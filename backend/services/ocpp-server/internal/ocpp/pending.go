package ocpp

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

type callOutcome struct {
	payload json.RawMessage
	err     error
}

type waiter struct {
	ch   chan callOutcome
	done bool
}

// PendingCalls correlates outbound CALLs with their CALLRESULT/CALLERROR by message id.
// Each connection owns one table; closing it fails every waiter.
type PendingCalls struct {
	mu      sync.Mutex
	waiters map[string]*waiter
	closed  error
	logger  *zap.Logger
}

// NewPendingCalls returns an empty table.
func NewPendingCalls(logger *zap.Logger) *PendingCalls {
	return &PendingCalls{
		waiters: make(map[string]*waiter),
		logger:  logger,
	}
}

// Register reserves a slot for messageID. It fails with ErrConnectionClosed after Close.
func (p *PendingCalls) Register(messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed != nil {
		return p.closed
	}
	p.waiters[messageID] = &waiter{ch: make(chan callOutcome, 1)}
	return nil
}

// Wait blocks until the call completes, ctx ends or the table is closed.
// A context deadline is reported as ErrCallTimeout.
func (p *PendingCalls) Wait(ctx context.Context, messageID string) (json.RawMessage, error) {
	p.mu.Lock()
	w, ok := p.waiters[messageID]
	closedErr := p.closed
	p.mu.Unlock()
	if !ok {
		if closedErr != nil {
			return nil, closedErr
		}
		return nil, ErrConnectionClosed
	}
	defer p.Forget(messageID)

	select {
	case outcome := <-w.ch:
		return outcome.payload, outcome.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrCallTimeout
		}
		return nil, ctx.Err()
	}
}

// Resolve completes a call with its result payload. It reports whether messageID was pending.
func (p *PendingCalls) Resolve(messageID string, payload json.RawMessage) bool {
	return p.complete(messageID, callOutcome{payload: payload})
}

// Reject completes a call with a charger-side error.
func (p *PendingCalls) Reject(messageID string, callErr *CallError) bool {
	return p.complete(messageID, callOutcome{err: callErr})
}

// Forget drops a waiter without completing it.
func (p *PendingCalls) Forget(messageID string) {
	p.mu.Lock()
	delete(p.waiters, messageID)
	p.mu.Unlock()
}

// Len returns the number of in-flight calls.
func (p *PendingCalls) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Close fails every in-flight call with err (ErrConnectionClosed when nil) and rejects
// later registrations. Responses arriving afterwards are discarded.
func (p *PendingCalls) Close(err error) {
	if err == nil {
		err = ErrConnectionClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed != nil {
		return
	}
	p.closed = err
	for _, w := range p.waiters {
		if !w.done {
			w.done = true
			w.ch <- callOutcome{err: err}
		}
	}
	p.waiters = make(map[string]*waiter)
}

func (p *PendingCalls) complete(messageID string, outcome callOutcome) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.waiters[messageID]
	if !ok || w.done {
		if p.logger != nil {
			p.logger.Warn("discarding response for unknown message id", zap.String("message_id", messageID))
		}
		return false
	}
	// buffered for exactly one outcome, never blocks
	w.done = true
	w.ch <- outcome
	return true
}
