package state

// configfileObject mirrors the static klipper configuration a dashboard
// expects to find. The printer has no klipper config, so the values
// describe the machine well enough for UI feature detection (heater
// limits, macros, caselight pin).
func configfileObject() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"printer": map[string]any{
				"kinematics":   "corexy",
				"max_velocity": 500,
				"max_accel":    10000,
			},
			"extruder": map[string]any{
				"min_temp":        0,
				"max_temp":        300,
				"nozzle_diameter": 0.4,
			},
			"heater_bed": map[string]any{
				"min_temp": 0,
				"max_temp": 120,
			},
			"fan":                      map[string]any{"pin": "fan0"},
			"virtual_sdcard":           map[string]any{"path": "/tmp/gcodes"},
			"pause_resume":             map[string]any{},
			"display_status":           map[string]any{},
			"gcode_macro pause":        map[string]any{},
			"gcode_macro resume":       map[string]any{},
			"gcode_macro cancel_print": map[string]any{},
			"output_pin caselight": map[string]any{
				"pin":            "gpio1",
				"pwm":            false,
				"value":          0,
				"shutdown_value": 0,
			},
		},
		"config": map[string]any{
			"printer": map[string]any{
				"kinematics":   "corexy",
				"max_velocity": "500",
				"max_accel":    "10000",
			},
			"extruder": map[string]any{
				"min_temp":        "0",
				"max_temp":        "300",
				"nozzle_diameter": "0.4",
			},
			"heater_bed": map[string]any{
				"min_temp": "0",
				"max_temp": "120",
			},
			"virtual_sdcard":           map[string]any{"path": "/tmp/gcodes"},
			"pause_resume":             map[string]any{},
			"display_status":           map[string]any{},
			"gcode_macro pause":        map[string]any{},
			"gcode_macro resume":       map[string]any{},
			"gcode_macro cancel_print": map[string]any{},
		},
	}
}
