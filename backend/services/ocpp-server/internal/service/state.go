package service

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/metrics"
	"chargerlink/backend/services/ocpp-server/internal/notifier"
	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

const powerWindowSize = 5

// ChargerState is the derived view of the managed charger. Nil pointers mean "not known yet".
type ChargerState struct {
	ChargePointID string `json:"charge_point_id"`
	Connected     bool   `json:"connected"`

	PowerKW         *float64 `json:"power_kw"`
	PowerKWSmoothed *float64 `json:"power_kw_smoothed"`
	EnergyKWh       *float64 `json:"energy_kwh"`

	SessionEnergyKWh     *float64   `json:"session_energy_kwh"`
	SessionStart         *time.Time `json:"session_start"`
	SessionStartMeterKWh *float64   `json:"session_start_meter_kwh"`
	SessionEventType     string     `json:"session_event_type,omitempty"`
	SessionTriggerReason string     `json:"session_trigger_reason,omitempty"`

	PluggedIn           bool `json:"plugged_in"`
	Charging            bool `json:"charging"`
	RemoteStopRequested bool `json:"remote_stop_requested"`

	TransactionID     string     `json:"transaction_id,omitempty"`
	LastStatus        string     `json:"last_status,omitempty"`
	LastChargingState string     `json:"last_charging_state,omitempty"`
	LastUpdate        *time.Time `json:"last_update"`

	LastTransactionInfo json.RawMessage `json:"last_transaction_info,omitempty"`
	LastMeterValue      json.RawMessage `json:"last_meter_value,omitempty"`
}

// SessionActive reports whether a charging session is open.
func (s ChargerState) SessionActive() bool {
	return s.SessionStart != nil
}

func (s ChargerState) clone() ChargerState {
	c := s
	c.PowerKW = cloneFloat(s.PowerKW)
	c.PowerKWSmoothed = cloneFloat(s.PowerKWSmoothed)
	c.EnergyKWh = cloneFloat(s.EnergyKWh)
	c.SessionEnergyKWh = cloneFloat(s.SessionEnergyKWh)
	c.SessionStartMeterKWh = cloneFloat(s.SessionStartMeterKWh)
	c.SessionStart = cloneTime(s.SessionStart)
	c.LastUpdate = cloneTime(s.LastUpdate)
	c.LastTransactionInfo = cloneRaw(s.LastTransactionInfo)
	c.LastMeterValue = cloneRaw(s.LastMeterValue)
	return c
}

// TransactionEvent is the part of a TransactionEvent request the state machine consumes.
type TransactionEvent struct {
	EventType       string
	TriggerReason   string
	TransactionInfo json.RawMessage
	MeterValue      json.RawMessage
}

// StateMachine owns the single ChargerState. Every mutation runs under mu and is followed by
// exactly one notification, issued after mu is released.
type StateMachine struct {
	mu          sync.RWMutex
	state       ChargerState
	powerWindow []float64

	notifier *notifier.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewStateMachine returns a state machine holding disconnected defaults.
func NewStateMachine(n *notifier.Notifier, logger *zap.Logger) *StateMachine {
	if n == nil {
		n = notifier.New(logger)
	}
	return &StateMachine{
		notifier: n,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns a deep copy of the current state.
func (m *StateMachine) Snapshot() ChargerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Subscribe attaches an observer called after every mutation.
func (m *StateMachine) Subscribe(fn func()) func() {
	return m.notifier.Subscribe(fn)
}

// mutate applies fn under the lock, stamps last_update and notifies once the lock is released.
func (m *StateMachine) mutate(fn func(st *ChargerState)) {
	m.mu.Lock()
	fn(&m.state)
	m.state.LastUpdate = timePtr(m.now())
	st := m.state
	m.mu.Unlock()

	metrics.ObserveCharger(st.Charging, st.PluggedIn, st.PowerKW, st.EnergyKWh)
	m.notifier.Notify()
}

// MarkConnected records a new live session.
func (m *StateMachine) MarkConnected(chargePointID string) {
	m.mutate(func(st *ChargerState) {
		st.ChargePointID = chargePointID
		st.Connected = true
	})
	metrics.SetConnected(true)
}

// ResetDisconnected moves the state to "charger unreachable". Meter and session readings are
// kept so the last known values stay visible.
func (m *StateMachine) ResetDisconnected() {
	m.mutate(func(st *ChargerState) {
		st.Connected = false
		st.PluggedIn = false
		st.Charging = false
		st.TransactionID = ""
		st.LastStatus = protocol.StatusDisconnected
		st.LastChargingState = ""
		st.RemoteStopRequested = false
	})
	metrics.SetConnected(false)
}

// ApplyStatusNotification derives plugged_in and charging from a connector status report.
func (m *StateMachine) ApplyStatusNotification(connectorStatus string) {
	m.mutate(func(st *ChargerState) {
		st.LastStatus = connectorStatus
		st.PluggedIn = !strings.EqualFold(connectorStatus, protocol.ConnectorAvailable) &&
			!strings.EqualFold(connectorStatus, protocol.ConnectorFaulted)

		switch {
		case isActiveChargingState(st.LastChargingState):
			st.Charging = !st.RemoteStopRequested
		case isInactiveChargingState(st.LastChargingState):
			st.Charging = false
		default:
			st.Charging = strings.EqualFold(connectorStatus, protocol.ConnectorCharging) && !st.RemoteStopRequested
		}
	})
}

// ApplyTransactionEvent runs the transaction lifecycle rules. Meter values carried by the
// event are ingested first and notify on their own.
func (m *StateMachine) ApplyTransactionEvent(evt TransactionEvent) {
	info, hasInfo, err := protocol.ParseTransactionInfo(evt.TransactionInfo)
	if err != nil {
		m.logger.Warn("ignoring unreadable transactionInfo", zap.Error(err))
		hasInfo = false
	}

	m.mu.Lock()
	m.state.SessionEventType = evt.EventType
	m.state.SessionTriggerReason = evt.TriggerReason
	m.state.LastTransactionInfo = cloneRaw(evt.TransactionInfo)
	m.mu.Unlock()

	if len(evt.MeterValue) > 0 {
		m.IngestMeterValues(evt.MeterValue)
	}

	if hasInfo && info.StoppedReason == protocol.ReasonEVDisconnected {
		m.logger.Info("ev disconnected, clearing session", zap.String("transaction_id", info.TransactionID))
		m.mutate(func(st *ChargerState) {
			st.PluggedIn = false
			st.Charging = false
			st.TransactionID = ""
			st.LastChargingState = protocol.ChargingStateIdle
			st.RemoteStopRequested = false
			st.SessionStart = nil
			st.SessionStartMeterKWh = nil
		})
		return
	}

	m.mutate(func(st *ChargerState) {
		if hasInfo {
			st.LastChargingState = info.ChargingState
			st.TransactionID = info.TransactionID
			switch {
			case isActiveChargingState(info.ChargingState):
				if st.RemoteStopRequested {
					m.logger.Info("charger reports active charging state while remote stop is pending",
						zap.String("charging_state", info.ChargingState))
				}
				st.Charging = !st.RemoteStopRequested
			case isInactiveChargingState(info.ChargingState):
				st.Charging = false
			}
		}

		switch evt.EventType {
		case protocol.EventTypeStarted:
			st.SessionStart = timePtr(m.now())
			st.SessionStartMeterKWh = cloneFloat(st.EnergyKWh)
			st.SessionEnergyKWh = floatPtr(0)
			st.RemoteStopRequested = false
		case protocol.EventTypeEnded, protocol.EventTypeStopped:
			st.SessionStart = nil
			st.SessionStartMeterKWh = nil
			st.RemoteStopRequested = false
			st.Charging = false
		}
	})
}

// MarkRemoteStartAccepted clears the remote stop latch. Charging itself waits for the
// charger's own TransactionEvent.
func (m *StateMachine) MarkRemoteStartAccepted() {
	m.mutate(func(st *ChargerState) {
		st.RemoteStopRequested = false
	})
}

// MarkRemoteStopAccepted latches the remote stop and drops charging right away.
func (m *StateMachine) MarkRemoteStopAccepted() {
	m.mutate(func(st *ChargerState) {
		st.RemoteStopRequested = true
		st.Charging = false
	})
}

func isActiveChargingState(state string) bool {
	return state == protocol.ChargingStateCharging || state == protocol.ChargingStateEVConnected
}

func isInactiveChargingState(state string) bool {
	switch state {
	case protocol.ChargingStateIdle, protocol.ChargingStateFinished,
		protocol.ChargingStateSuspendedEV, protocol.ChargingStateSuspendedEVSE:
		return true
	}
	return false
}

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return floatPtr(*v)
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	return timePtr(*v)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
