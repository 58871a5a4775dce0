package handlers

import (
	"context"
	"encoding/json"
	"time"

	"chargerlink/backend/services/ocpp-server/internal/ocpp"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

// NewHeartbeatHandler returns ack with current time.
func NewHeartbeatHandler() ocpp.HandlerFunc {
	return func(context.Context, string, json.RawMessage) (interface{}, error) {
		return protocol.HeartbeatResponse{
			CurrentTime: time.Now().UTC(),
		}, nil
	}
}
