package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/ocpp"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
	"chargerlink/backend/services/ocpp-server/internal/service"
)

// NewStatusNotificationHandler feeds connector status into the state machine.
func NewStatusNotificationHandler(state *service.StateMachine, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.StatusNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		logger.Info("status notification",
			zap.String("charge_point_id", chargePointID),
			zap.String("connector_status", req.ConnectorStatus),
			zap.Int("evse_id", req.EVSEID),
			zap.Int("connector_id", req.ConnectorID),
		)
		state.ApplyStatusNotification(req.ConnectorStatus)

		return protocol.StatusNotificationResponse{}, nil
	}
}
