package state

// maxTempSamples caps each history series; the oldest sample is evicted
// on overflow. 600 samples at the device's ~1Hz report rate is the window
// dashboards expect from a temperature store.
const maxTempSamples = 600

// historyFields maps state field -> series key in the temperature store.
var historyFields = map[string]string{
	"temperature": "temperatures",
	"target":      "targets",
	"power":       "powers",
}

type temperatureHistory struct {
	max    int
	series map[string]map[string][]float64
}

func newTemperatureHistory(max int) *temperatureHistory {
	return &temperatureHistory{
		max:    max,
		series: map[string]map[string][]float64{},
	}
}

// record appends one sample per known field from the sensor's current state.
func (h *temperatureHistory) record(sensor string, fields map[string]any) {
	if fields == nil {
		return
	}
	for field, key := range historyFields {
		v, ok := asFloat(fields[field])
		if !ok {
			continue
		}
		sensorSeries, ok := h.series[sensor]
		if !ok {
			sensorSeries = map[string][]float64{}
			h.series[sensor] = sensorSeries
		}
		samples := append(sensorSeries[key], v)
		if len(samples) > h.max {
			samples = samples[len(samples)-h.max:]
		}
		sensorSeries[key] = samples
	}
}

// snapshot copies the series for one sensor.
func (h *temperatureHistory) snapshot(sensor string) map[string][]float64 {
	sensorSeries, ok := h.series[sensor]
	if !ok {
		return nil
	}
	out := make(map[string][]float64, len(sensorSeries))
	for key, samples := range sensorSeries {
		if len(samples) == 0 {
			continue
		}
		copied := make([]float64, len(samples))
		copy(copied, samples)
		out[key] = copied
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
