package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/ocpp"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
	"chargerlink/backend/services/ocpp-server/internal/service"
)

// NewTransactionEventHandler feeds transaction lifecycle events and their meter values into the
// state machine.
func NewTransactionEventHandler(state *service.StateMachine, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.TransactionEventRequest](payload)
		if err != nil {
			return nil, err
		}

		logger.Info("transaction event",
			zap.String("charge_point_id", chargePointID),
			zap.String("event_type", req.EventType),
			zap.String("trigger_reason", req.TriggerReason),
			zap.Int("seq_no", req.SeqNo),
		)
		state.ApplyTransactionEvent(service.TransactionEvent{
			EventType:       req.EventType,
			TriggerReason:   req.TriggerReason,
			TransactionInfo: req.TransactionInfo,
			MeterValue:      req.MeterValue,
		})

		return protocol.TransactionEventResponse{}, nil
	}
}
