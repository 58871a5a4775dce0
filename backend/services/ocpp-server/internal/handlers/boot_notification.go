package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/ocpp"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

// bootStation tolerates firmwares that send snake_case vendor names.
type bootStation struct {
	protocol.ChargingStation
	VendorNameSnake string `json:"vendor_name"`
}

type bootRequest struct {
	ChargingStation bootStation `json:"chargingStation"`
	Reason          string      `json:"reason"`
}

// NewBootNotificationHandler always accepts the charger and hands out the heartbeat interval.
func NewBootNotificationHandler(interval time.Duration, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[bootRequest](payload)
		if err != nil {
			logger.Warn("unreadable boot notification", zap.String("charge_point_id", chargePointID), zap.Error(err))
		}

		vendor := req.ChargingStation.VendorName
		if vendor == "" {
			vendor = req.ChargingStation.VendorNameSnake
		}
		logger.Info("boot notification",
			zap.String("charge_point_id", chargePointID),
			zap.String("model", req.ChargingStation.Model),
			zap.String("vendor", vendor),
			zap.String("firmware", req.ChargingStation.FirmwareVersion),
			zap.String("reason", req.Reason),
		)

		return protocol.BootNotificationResponse{
			CurrentTime: time.Now().UTC(),
			Interval:    int(interval / time.Second),
			Status:      protocol.RegistrationAccepted,
		}, nil
	}
}
