package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/metrics"
	"chargerlink/backend/services/ocpp-server/internal/ocpp"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

// Caller sends outbound calls over the live charger session.
type Caller interface {
	Connected() bool
	Call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error)
}

// DispatcherConfig carries the charger identity used in remote start requests.
type DispatcherConfig struct {
	EVSEID      int
	IDToken     string
	CallTimeout time.Duration
}

// Dispatcher turns operator commands into outbound calls and feeds accepted outcomes back
// into the state machine. It never returns errors: every failure reads as "not accepted".
type Dispatcher struct {
	caller Caller
	state  *StateMachine
	cfg    DispatcherConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(caller Caller, state *StateMachine, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Dispatcher{
		caller: caller,
		state:  state,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// RequestStart asks the charger to start a transaction with the configured token.
// Charging is only reported once the charger's TransactionEvent arrives.
func (d *Dispatcher) RequestStart(ctx context.Context) bool {
	action := protocol.ActionRequestStartTransaction
	if !d.caller.Connected() {
		d.logger.Warn("cannot start transaction: no charger connected")
		metrics.ObserveCommand(action, "skipped")
		return false
	}

	req := protocol.RequestStartTransactionRequest{
		EVSEID:        d.cfg.EVSEID,
		IDToken:       protocol.IDToken{IDToken: d.cfg.IDToken, Type: protocol.IDTokenTypeLocal},
		RemoteStartID: d.now().Unix(),
	}
	if !d.sendStartStop(ctx, action, req) {
		return false
	}
	d.state.MarkRemoteStartAccepted()
	return true
}

// RequestStop asks the charger to stop the known transaction. On acceptance charging drops
// immediately, ahead of the charger's confirmation.
func (d *Dispatcher) RequestStop(ctx context.Context) bool {
	action := protocol.ActionRequestStopTransaction
	transactionID := d.state.Snapshot().TransactionID
	if !d.caller.Connected() || transactionID == "" {
		d.logger.Warn("cannot stop transaction: no charger connected or no transaction id",
			zap.String("transaction_id", transactionID))
		metrics.ObserveCommand(action, "skipped")
		return false
	}

	if !d.sendStartStop(ctx, action, protocol.RequestStopTransactionRequest{TransactionID: transactionID}) {
		return false
	}
	d.state.MarkRemoteStopAccepted()
	return true
}

// RequestRefresh asks the charger to re-send its connector status. Best effort.
func (d *Dispatcher) RequestRefresh(ctx context.Context) {
	action := protocol.ActionTriggerMessage
	if !d.caller.Connected() {
		d.logger.Debug("refresh skipped: no charger connected")
		metrics.ObserveCommand(action, "skipped")
		return
	}

	payload, err := d.call(ctx, action, protocol.TriggerMessageRequest{
		RequestedMessage: protocol.MessageTriggerStatusNotification,
	})
	if err != nil {
		d.logger.Warn("trigger message failed", zap.Error(err))
		metrics.ObserveCommand(action, outcome(err))
		return
	}

	resp, err := ocpp.DecodePayload[protocol.TriggerMessageResponse](payload)
	if err != nil {
		d.logger.Warn("unreadable trigger message response", zap.Error(err))
		metrics.ObserveCommand(action, "error")
		return
	}
	d.logger.Info("trigger message answered", zap.String("status", resp.Status))
	metrics.ObserveCommand(action, statusOutcome(resp.Status))
}

func (d *Dispatcher) sendStartStop(ctx context.Context, action string, req interface{}) bool {
	d.logger.Info("sending remote command", zap.String("action", action), zap.Any("request", req))

	payload, err := d.call(ctx, action, req)
	if err != nil {
		d.logger.Warn("remote command failed", zap.String("action", action), zap.Error(err))
		metrics.ObserveCommand(action, outcome(err))
		return false
	}

	resp, err := ocpp.DecodePayload[protocol.RequestStartStopResponse](payload)
	if err != nil {
		d.logger.Warn("unreadable remote command response", zap.String("action", action), zap.Error(err))
		metrics.ObserveCommand(action, "error")
		return false
	}

	d.logger.Info("remote command answered", zap.String("action", action), zap.String("status", resp.Status))
	metrics.ObserveCommand(action, statusOutcome(resp.Status))
	return resp.Status == protocol.RequestStatusAccepted
}

func (d *Dispatcher) call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()
	return d.caller.Call(callCtx, action, payload)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ocpp.ErrCallTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ocpp.ErrConnectionClosed):
		return "closed"
	}
	var callErr *ocpp.CallError
	if errors.As(err, &callErr) {
		return "rejected"
	}
	return "error"
}

func statusOutcome(status string) string {
	if status == protocol.RequestStatusAccepted {
		return "accepted"
	}
	return "rejected"
}
