package service

import "context"

// Charger is the outward facing surface of the gateway: a read-only state snapshot, change
// notifications and the three operator commands.
type Charger struct {
	state      *StateMachine
	dispatcher *Dispatcher
	caller     Caller
}

// NewCharger ties state and dispatcher together.
func NewCharger(state *StateMachine, dispatcher *Dispatcher, caller Caller) *Charger {
	return &Charger{state: state, dispatcher: dispatcher, caller: caller}
}

// State returns a snapshot of the charger state.
func (c *Charger) State() ChargerState {
	return c.state.Snapshot()
}

// Subscribe registers fn for state change notifications and returns its unsubscribe func.
func (c *Charger) Subscribe(fn func()) func() {
	return c.state.Subscribe(fn)
}

// IsConnected reports whether a charger session is live.
func (c *Charger) IsConnected() bool {
	return c.caller.Connected()
}

// RequestStart asks the charger to start a session and reports whether it accepted.
func (c *Charger) RequestStart(ctx context.Context) bool {
	return c.dispatcher.RequestStart(ctx)
}

// RequestStop asks the charger to stop the current transaction and reports whether it accepted.
func (c *Charger) RequestStop(ctx context.Context) bool {
	return c.dispatcher.RequestStop(ctx)
}

// RequestRefresh nudges the charger to resend its connector status.
func (c *Charger) RequestRefresh(ctx context.Context) {
	c.dispatcher.RequestRefresh(ctx)
}
