package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "frames_total",
	Help:      "OCPP CALL frames by direction and action.",
}, []string{"direction", "action"})

var malformedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "malformed_frames_total",
	Help:      "Frames dropped because they were not valid OCPP-J envelopes.",
})

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "commands_total",
	Help:      "Operator commands by action and outcome.",
}, []string{"action", "outcome"})

var connectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "charger",
	Name:      "connected",
	Help:      "1 while the charger holds a websocket session.",
})

var chargingGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "charger",
	Name:      "charging",
	Help:      "1 while the charger is considered to be charging.",
})

var pluggedGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "charger",
	Name:      "plugged_in",
	Help:      "1 while a vehicle is considered plugged in.",
})

var powerGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "charger",
	Name:      "power_kw",
	Help:      "Last reported active import power in kW.",
})

var energyGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "charger",
	Name:      "energy_kwh",
	Help:      "Last reported cumulative energy register in kWh.",
})

// ObserveFrame counts a CALL frame.
func ObserveFrame(direction, action string) {
	if action == "" {
		return
	}
	framesTotal.With(prometheus.Labels{"direction": direction, "action": action}).Inc()
}

// ObserveMalformed counts a dropped frame.
func ObserveMalformed() {
	malformedTotal.Inc()
}

// ObserveCommand counts an operator command outcome.
func ObserveCommand(action, outcome string) {
	commandsTotal.With(prometheus.Labels{"action": action, "outcome": outcome}).Inc()
}

// SetConnected flips the connection gauge.
func SetConnected(connected bool) {
	connectedGauge.Set(boolValue(connected))
}

// ObserveCharger mirrors the derived charger state. Unknown readings keep their last value.
func ObserveCharger(charging, pluggedIn bool, powerKW, energyKWh *float64) {
	chargingGauge.Set(boolValue(charging))
	pluggedGauge.Set(boolValue(pluggedIn))
	if powerKW != nil {
		powerGauge.Set(*powerKW)
	}
	if energyKWh != nil {
		energyGauge.Set(*energyKWh)
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
