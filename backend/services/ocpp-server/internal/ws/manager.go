package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/ocpp"
)

// Hooks are called when the live session changes.
type Hooks struct {
	OnConnect    func(chargePointID string)
	OnDisconnect func(chargePointID string)
}

// Manager tracks the single live charger session. A newer connection supersedes the stored
// one; the superseded socket is closed only when evictSuperseded is set.
type Manager struct {
	mu              sync.RWMutex
	current         *Connection
	pingInterval    time.Duration
	evictSuperseded bool
	hooks           Hooks
	logger          *zap.Logger
}

// NewManager builds connection manager. pingInterval <= 0 disables keep-alive pings.
func NewManager(pingInterval time.Duration, evictSuperseded bool, hooks Hooks, logger *zap.Logger) *Manager {
	return &Manager{
		pingInterval:    pingInterval,
		evictSuperseded: evictSuperseded,
		hooks:           hooks,
		logger:          logger,
	}
}

// Attach makes conn the live session.
func (m *Manager) Attach(conn *Connection) {
	m.mu.Lock()
	previous := m.current
	m.current = conn
	m.mu.Unlock()

	if previous != nil {
		m.logger.Info("charger session superseded",
			zap.String("previous", previous.ChargePointID()),
			zap.String("current", conn.ChargePointID()),
			zap.Bool("evict", m.evictSuperseded))
		if m.evictSuperseded {
			previous.Close()
		}
	}
	if m.hooks.OnConnect != nil {
		m.hooks.OnConnect(conn.ChargePointID())
	}
}

// Detach forgets conn if it is still the live session and reports whether it was.
// Tear-down of a superseded connection leaves the newer session alone.
func (m *Manager) Detach(conn *Connection) bool {
	m.mu.Lock()
	if m.current != conn {
		m.mu.Unlock()
		m.logger.Debug("superseded session closed", zap.String("charge_point_id", conn.ChargePointID()))
		return false
	}
	m.current = nil
	m.mu.Unlock()

	if m.hooks.OnDisconnect != nil {
		m.hooks.OnDisconnect(conn.ChargePointID())
	}
	return true
}

// Current returns the live session or nil.
func (m *Manager) Current() *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Connected reports whether a session is live.
func (m *Manager) Connected() bool {
	return m.Current() != nil
}

// Call sends an outbound call on the live session.
func (m *Manager) Call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	conn := m.Current()
	if conn == nil {
		return nil, ocpp.ErrConnectionClosed
	}
	return conn.Call(ctx, action, payload)
}

// CloseAll closes the live session, used on shutdown.
func (m *Manager) CloseAll() {
	if conn := m.Current(); conn != nil {
		conn.Close()
	}
}

// Start begins ping loop to keep the session active.
func (m *Manager) Start(ctx context.Context) {
	if m.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if conn := m.Current(); conn != nil {
				if err := conn.Ping(); err != nil {
					m.logger.Debug("ping failed", zap.String("charge_point_id", conn.ChargePointID()), zap.Error(err))
				}
			}
		}
	}
}
