package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/ocpp"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

// UnknownChargePointID is used when the request path carries no identifier.
const UnknownChargePointID = "unknown"

// Server upgrades HTTP connections to OCPP 2.0.1 WebSocket sessions.
type Server struct {
	manager   *Manager
	processor MessageProcessor
	cfg       ConnectionConfig
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, processor MessageProcessor, cfg ConnectionConfig, logger *zap.Logger) *Server {
	return &Server{
		manager:   manager,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{protocol.Subprotocol},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for every path; the trailing path segment names the charger.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	chargePointID := ChargePointIDFromPath(r.URL.Path)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	if conn.Subprotocol() != protocol.Subprotocol {
		err := fmt.Errorf("%w: negotiated %q", ocpp.ErrProtocolViolation, conn.Subprotocol())
		s.logger.Warn("charger did not negotiate ocpp2.0.1, closing",
			zap.String("charge_point_id", chargePointID),
			zap.Strings("offered", websocket.Subprotocols(r)),
			zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "ocpp2.0.1 required"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(chargePointID, conn, s.processor, s.cfg, s.logger, func(c *Connection) {
		s.manager.Detach(c)
		cancel()
		s.logger.Info("charger disconnected", zap.String("charge_point_id", c.ChargePointID()))
	})
	s.manager.Attach(connection)

	go connection.Start(ctx)
	s.logger.Info("charger connected", zap.String("charge_point_id", chargePointID), zap.String("path", r.URL.Path))
}

// ChargePointIDFromPath returns the trailing non-empty path segment.
func ChargePointIDFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return UnknownChargePointID
	}
	return trimmed
}
