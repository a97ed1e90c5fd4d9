package bambu

import (
	"strconv"
)

// Update is a sparse observable-state update: subsystem -> field -> value.
type Update = map[string]map[string]any

// Lifecycle enumeration mapping, vendor -> dashboard print state.
// Anything unrecognized is treated as standby.
var gcodeStateMap = map[string]string{
	"IDLE":    "standby",
	"RUNNING": "printing",
	"PAUSE":   "paused",
	"FINISH":  "complete",
	"FAILED":  "error",
}

// TranslateTelemetry maps the vendor telemetry object to observable-state
// updates. Sparse semantics: a field absent from the frame produces no
// update, it is never zeroed.
func TranslateTelemetry(data map[string]any) Update {
	updates := Update{}

	extruder := map[string]any{}
	if v, ok := toFloat(data["nozzle_temper"]); ok {
		extruder["temperature"] = v
	}
	if v, ok := toFloat(data["nozzle_target_temper"]); ok {
		extruder["target"] = v
	}
	if len(extruder) > 0 {
		updates["extruder"] = extruder
	}

	bed := map[string]any{}
	if v, ok := toFloat(data["bed_temper"]); ok {
		bed["temperature"] = v
	}
	if v, ok := toFloat(data["bed_target_temper"]); ok {
		bed["target"] = v
	}
	if len(bed) > 0 {
		updates["heater_bed"] = bed
	}

	// The device reports fan duty on a 0-15 scale, sometimes as a string.
	// Dashboards only get a binary on/off representation out of it.
	if v, ok := toFloat(data["cooling_fan_speed"]); ok {
		speed := 0.0
		if v > 0 {
			speed = 1.0
		}
		updates["fan"] = map[string]any{"speed": speed}
	}

	printState := ""
	if raw, ok := data["gcode_state"].(string); ok {
		printState = "standby"
		if mapped, known := gcodeStateMap[raw]; known {
			printState = mapped
		}
		stats := map[string]any{"state": printState}
		if name, ok := data["subtask_name"].(string); ok {
			stats["filename"] = name
		}
		updates["print_stats"] = stats
	}

	if v, ok := toFloat(data["mc_percent"]); ok {
		progress := v / 100.0
		sdcard := map[string]any{"progress": progress}
		if printState != "" {
			sdcard["is_active"] = printState == "printing"
		}
		updates["virtual_sdcard"] = sdcard
		updates["display_status"] = map[string]any{"progress": progress}
	}

	return updates
}

// toFloat accepts the value shapes the device has been observed to send:
// JSON numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
