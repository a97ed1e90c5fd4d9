package state

import (
	"reflect"
	"sync"
	"time"
)

// Update is a sparse observable-state update: subsystem -> field -> value.
// Compatible with the device link's translated output.
type Update = map[string]map[string]any

// Store is the canonical in-memory mirror of printer status. It is the
// single owner and sole mutator of the observable state and temperature
// history; everything else reads snapshots or receives deltas.
type Store struct {
	mu      sync.RWMutex
	state   map[string]map[string]any
	history *temperatureHistory
	tracked map[string]bool

	lastEventTime float64
	now           func() time.Time
}

// Subsystems whose temperature/target/power get sampled into history.
var trackedSubsystems = []string{"extruder", "heater_bed"}

func NewStore() *Store {
	s := &Store{
		state:   defaultSchema(),
		history: newTemperatureHistory(maxTempSamples),
		tracked: map[string]bool{},
		now:     time.Now,
	}
	for _, name := range trackedSubsystems {
		s.tracked[name] = true
		s.history.record(name, s.state[name])
	}
	s.lastEventTime = float64(s.now().UnixNano()) / 1e9
	return s
}

// defaultSchema is the closed set of subsystems exposed to dashboards,
// pre-populated so probes before the first telemetry frame see a coherent
// idle printer.
func defaultSchema() map[string]map[string]any {
	return map[string]map[string]any{
		"extruder": {
			"temperature":      0.0,
			"target":           0.0,
			"power":            0.0,
			"pressure_advance": 0.0,
			"smooth_time":      0.0,
		},
		"heater_bed": {
			"temperature": 0.0,
			"target":      0.0,
			"power":       0.0,
		},
		"fan": {"speed": 0.0},
		"virtual_sdcard": {
			"progress":      0.0,
			"is_active":     false,
			"file_position": 0,
		},
		"display_status": {
			"progress": 0.0,
			"message":  "",
		},
		"heaters": {
			"available_heaters": []string{"extruder", "heater_bed"},
			"available_sensors": []string{"extruder", "heater_bed"},
		},
		"print_stats": {
			"state":          "standby",
			"filename":       "",
			"print_duration": 0.0,
			"total_duration": 0.0,
			"filament_used":  0.0,
		},
		"toolhead": {
			"position":               []float64{0.0, 0.0, 0.0},
			"status":                 "Ready",
			"homed_axes":             "xyz",
			"max_velocity":           500.0,
			"max_accel":              3000.0,
			"max_accel_to_decel":     1500.0,
			"square_corner_velocity": 5.0,
		},
		"output_pin caselight": {"value": 0.0},
		"webhooks": {
			"state":         "ready",
			"state_message": "Printer is ready",
		},
		"configfile": configfileObject(),
	}
}

// ApplyUpdate applies a sparse update and returns the minimal delta of
// fields that actually changed, plus the event time. A nil delta means
// nothing changed. Updates are applied to completion under the lock, so
// observers never see a partial apply.
func (s *Store) ApplyUpdate(updates Update) (Update, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delta Update
	for subsystem, fields := range updates {
		current, known := s.state[subsystem]
		if !known {
			// Unknown subsystems are ignored, but tracked sensors still
			// get a history sample to keep the series continuous.
			if s.tracked[subsystem] {
				s.history.record(subsystem, s.state[subsystem])
			}
			continue
		}

		var changed map[string]any
		for field, value := range fields {
			if reflect.DeepEqual(current[field], value) {
				continue
			}
			current[field] = value
			if changed == nil {
				changed = map[string]any{}
			}
			changed[field] = value
		}
		if changed != nil {
			if delta == nil {
				delta = Update{}
			}
			delta[subsystem] = changed
		}
		if s.tracked[subsystem] {
			s.history.record(subsystem, current)
		}
	}

	if delta != nil {
		s.lastEventTime = float64(s.now().UnixNano()) / 1e9
	}
	return delta, s.lastEventTime
}

// GetState returns a deep-copied snapshot of the full observable state.
func (s *Store) GetState() Update {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(Update, len(s.state))
	for subsystem, fields := range s.state {
		copied := make(map[string]any, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		snapshot[subsystem] = copied
	}
	return snapshot
}

// GetObject returns a copy of one subsystem's fields.
func (s *Store) GetObject(name string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.state[name]
	if !ok {
		return nil, false
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied, true
}

// ObjectNames lists the subsystems in the schema.
func (s *Store) ObjectNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.state))
	for name := range s.state {
		names = append(names, name)
	}
	return names
}

// EventTime is the timestamp of the last applied delta, unix seconds.
func (s *Store) EventTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastEventTime
}

// GetTemperatureHistory returns the bounded history series per tracked
// subsystem. If a subsystem has no samples yet, a single entry is seeded
// from current state so dashboards always have something to draw.
// includeMonitors is accepted for protocol compatibility; the bridge has
// no extra monitors to add.
func (s *Store) GetTemperatureHistory(includeMonitors bool) map[string]map[string][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_ = includeMonitors
	out := map[string]map[string][]float64{}
	for name := range s.tracked {
		series := s.history.snapshot(name)
		if len(series) == 0 {
			series = seedSeries(s.state[name])
		}
		if len(series) > 0 {
			out[name] = series
		}
	}
	return out
}

func seedSeries(fields map[string]any) map[string][]float64 {
	seeded := map[string][]float64{}
	for field, key := range historyFields {
		if v, ok := asFloat(fields[field]); ok {
			seeded[key] = []float64{v}
		}
	}
	return seeded
}
