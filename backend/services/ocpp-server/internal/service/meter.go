package service

import (
	"encoding/json"
	"math"

	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/ocpp/protocol"
)

// IngestMeterValues folds a meterValue array into power and energy readings. The last sample
// of each measurand wins; unreadable samples are skipped.
func (m *StateMachine) IngestMeterValues(raw json.RawMessage) {
	groups, err := protocol.ParseMeterValues(raw)
	if err != nil {
		m.logger.Warn("ignoring unreadable meterValue", zap.Error(err))
		return
	}

	var powerKW, energyKWh *float64
	for _, group := range groups {
		for _, sample := range group.SampledValues {
			value, ok := sample.Float()
			if !ok {
				continue
			}
			value *= math.Pow(10, float64(sample.Multiplier))

			switch sample.Measurand {
			case protocol.MeasurandPowerActiveImport:
				if sample.Unit == protocol.UnitWatt {
					value /= 1000
				}
				powerKW = floatPtr(value)
			case protocol.MeasurandEnergyActiveRegister:
				energyKWh = floatPtr(value)
			}
		}
	}

	m.mutate(func(st *ChargerState) {
		st.LastMeterValue = cloneRaw(raw)

		if powerKW != nil {
			st.PowerKW = powerKW
			m.powerWindow = append(m.powerWindow, *powerKW)
			if len(m.powerWindow) > powerWindowSize {
				m.powerWindow = m.powerWindow[len(m.powerWindow)-powerWindowSize:]
			}
			var sum float64
			for _, v := range m.powerWindow {
				sum += v
			}
			st.PowerKWSmoothed = floatPtr(sum / float64(len(m.powerWindow)))
		}

		if energyKWh != nil {
			st.EnergyKWh = energyKWh
			if st.SessionActive() {
				if st.SessionStartMeterKWh == nil {
					st.SessionStartMeterKWh = cloneFloat(energyKWh)
				}
				st.SessionEnergyKWh = floatPtr(math.Max(0, *energyKWh-*st.SessionStartMeterKWh))
			}
		}
	})
}
