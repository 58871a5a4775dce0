package protocol

// Subprotocol is the only websocket sub-protocol token the server speaks.
const Subprotocol = "ocpp2.0.1"

// MessageType values as per OCPP-J.
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// Inbound actions.
const (
	ActionBootNotification   = "BootNotification"
	ActionHeartbeat          = "Heartbeat"
	ActionStatusNotification = "StatusNotification"
	ActionTransactionEvent   = "TransactionEvent"
)

// Outbound actions.
const (
	ActionRequestStartTransaction = "RequestStartTransaction"
	ActionRequestStopTransaction  = "RequestStopTransaction"
	ActionTriggerMessage          = "TriggerMessage"
)

// CallError codes (subset used by the server).
const (
	ErrorCodeNotImplemented     = "NotImplemented"
	ErrorCodeFormationViolation = "FormationViolation"
	ErrorCodeInternalError      = "InternalError"
)

// Registration status values.
const (
	RegistrationAccepted = "Accepted"
	RegistrationRejected = "Rejected"
)

// RequestStartStopStatus values.
const (
	RequestStatusAccepted = "Accepted"
	RequestStatusRejected = "Rejected"
)

// ConnectorStatus values.
const (
	ConnectorAvailable   = "Available"
	ConnectorOccupied    = "Occupied"
	ConnectorReserved    = "Reserved"
	ConnectorUnavailable = "Unavailable"
	ConnectorFaulted     = "Faulted"
	ConnectorCharging    = "Charging"

	// StatusDisconnected is not an OCPP value; it marks a charger without a live socket.
	StatusDisconnected = "Disconnected"
)

// ChargingState values. Finished is not in the 2.0.1 enum but some firmwares send it.
const (
	ChargingStateCharging      = "Charging"
	ChargingStateEVConnected   = "EVConnected"
	ChargingStateSuspendedEV   = "SuspendedEV"
	ChargingStateSuspendedEVSE = "SuspendedEVSE"
	ChargingStateIdle          = "Idle"
	ChargingStateFinished      = "Finished"
)

// TransactionEvent eventType values. Stopped is a non-standard alias of Ended.
const (
	EventTypeStarted = "Started"
	EventTypeUpdated = "Updated"
	EventTypeEnded   = "Ended"
	EventTypeStopped = "Stopped"
)

// Reason values relevant to the state machine.
const (
	ReasonEVDisconnected = "EVDisconnected"
)

// Measurands understood by meter ingestion.
const (
	MeasurandPowerActiveImport    = "Power.Active.Import"
	MeasurandEnergyActiveRegister = "Energy.Active.Import.Register"
)

// UnitWatt marks power samples that are converted to kW.
const UnitWatt = "W"

// IDTokenTypeLocal marks a locally issued identity token.
const IDTokenTypeLocal = "Local"

// MessageTriggerStatusNotification asks the charger to re-send its connector status.
const MessageTriggerStatusNotification = "StatusNotification"
