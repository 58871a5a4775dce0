package ocpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/metrics"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

// ErrUnknownAction is returned by Route for actions without a handler.
var ErrUnknownAction = errors.New("ocpp: unsupported action")

// HandlerFunc processes message payload and returns response body.
type HandlerFunc func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error)

// Router dispatches OCPP actions to handlers.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Register attaches handler to action.
func (r *Router) Register(action string, handler HandlerFunc) {
	r.handlers[action] = handler
}

// Route executes handler for message. A panicking handler is reported as an error.
func (r *Router) Route(ctx context.Context, chargePointID string, env *Envelope) (response interface{}, err error) {
	handler, ok := r.handlers[env.Action]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownAction, env.Action)
	}
	defer func() {
		if rec := recover(); rec != nil {
			response, err = nil, fmt.Errorf("ocpp: %s handler panicked: %v", env.Action, rec)
		}
	}()
	return handler(ctx, chargePointID, env.Payload)
}

// Journal records raw frames for diagnostics.
type Journal interface {
	Save(ctx context.Context, chargePointID, direction, action string, payload []byte) error
}

// Processor ties together decoding, routing, response encoding and call correlation.
type Processor struct {
	router  *Router
	journal Journal
	logger  *zap.Logger
}

// NewProcessor builds Processor. journal may be nil.
func NewProcessor(router *Router, journal Journal, logger *zap.Logger) *Processor {
	return &Processor{
		router:  router,
		journal: journal,
		logger:  logger,
	}
}

// Process handles one inbound frame and returns the reply frame, if any. Errors are returned
// only for frames that could not be decoded; handler failures still yield a CALLRESULT so
// the charger does not start retrying.
func (p *Processor) Process(ctx context.Context, chargePointID string, pending *PendingCalls, raw []byte) ([]byte, error) {
	env, err := Decode(raw)
	if err != nil {
		metrics.ObserveMalformed()
		return nil, err
	}

	switch env.MessageType {
	case protocol.MessageTypeCallResult:
		p.Record(ctx, chargePointID, "incoming", "CallResult", raw)
		pending.Resolve(env.MessageID, env.Payload)
		return nil, nil
	case protocol.MessageTypeCallError:
		p.Record(ctx, chargePointID, "incoming", "CallError", raw)
		p.logger.Warn("charger returned call error",
			zap.String("message_id", env.MessageID),
			zap.String("code", env.Error.Code),
			zap.String("description", env.Error.Description))
		pending.Reject(env.MessageID, env.Error)
		return nil, nil
	}

	metrics.ObserveFrame("incoming", env.Action)
	p.Record(ctx, chargePointID, "incoming", env.Action, raw)

	var reply []byte
	responsePayload, err := p.router.Route(ctx, chargePointID, env)
	switch {
	case errors.Is(err, ErrUnknownAction):
		p.logger.Warn("unsupported ocpp action", zap.String("action", env.Action))
		reply, err = EncodeError(env.MessageID, protocol.ErrorCodeNotImplemented, err.Error())
	case err != nil:
		p.logger.Warn("ocpp handler failed", zap.String("action", env.Action), zap.Error(err))
		reply, err = EncodeResult(env.MessageID, nil)
	default:
		reply, err = EncodeResult(env.MessageID, responsePayload)
	}
	if err != nil {
		p.logger.Error("encode ocpp response failed", zap.String("action", env.Action), zap.Error(err))
		return nil, err
	}

	p.Record(ctx, chargePointID, "outgoing", env.Action, reply)
	return reply, nil
}

// Record journals a frame. Journal failures are logged and ignored.
func (p *Processor) Record(ctx context.Context, chargePointID, direction, action string, payload []byte) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Save(ctx, chargePointID, direction, action, payload); err != nil {
		p.logger.Debug("journal write failed", zap.String("action", action), zap.Error(err))
	}
}
