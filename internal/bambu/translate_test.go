package bambu

import (
	"reflect"
	"testing"
)

func TestTranslateTelemetry_SparseFields(t *testing.T) {
	t.Parallel()

	got := TranslateTelemetry(map[string]any{
		"nozzle_temper": 215.3,
	})
	want := Update{
		"extruder": {"temperature": 215.3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTranslateTelemetry_RunningWithProgress(t *testing.T) {
	t.Parallel()

	got := TranslateTelemetry(map[string]any{
		"gcode_state": "RUNNING",
		"mc_percent":  "42",
	})

	if got["print_stats"]["state"] != "printing" {
		t.Fatalf("expected printing, got %v", got["print_stats"]["state"])
	}
	if got["virtual_sdcard"]["progress"] != 0.42 {
		t.Fatalf("expected progress 0.42, got %v", got["virtual_sdcard"]["progress"])
	}
	if got["virtual_sdcard"]["is_active"] != true {
		t.Fatalf("expected is_active true")
	}
	if got["display_status"]["progress"] != 0.42 {
		t.Fatalf("display_status progress not mirrored")
	}
}

func TestTranslateTelemetry_StateMapping(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"IDLE":     "standby",
		"RUNNING":  "printing",
		"PAUSE":    "paused",
		"FINISH":   "complete",
		"FAILED":   "error",
		"WHATEVER": "standby",
	}
	for vendor, want := range cases {
		got := TranslateTelemetry(map[string]any{"gcode_state": vendor})
		if got["print_stats"]["state"] != want {
			t.Fatalf("gcode_state %s: got %v, want %s", vendor, got["print_stats"]["state"], want)
		}
	}
}

func TestTranslateTelemetry_FanDutyClamp(t *testing.T) {
	t.Parallel()

	on := TranslateTelemetry(map[string]any{"cooling_fan_speed": "7"})
	if on["fan"]["speed"] != 1.0 {
		t.Fatalf("duty 7 should read as on, got %v", on["fan"]["speed"])
	}
	off := TranslateTelemetry(map[string]any{"cooling_fan_speed": 0.0})
	if off["fan"]["speed"] != 0.0 {
		t.Fatalf("duty 0 should read as off, got %v", off["fan"]["speed"])
	}
}

func TestTranslateTelemetry_FilenameNeedsState(t *testing.T) {
	t.Parallel()

	// subtask_name only rides along with a lifecycle report.
	got := TranslateTelemetry(map[string]any{"subtask_name": "benchy.3mf"})
	if _, ok := got["print_stats"]; ok {
		t.Fatalf("filename without gcode_state should not produce print_stats")
	}

	got = TranslateTelemetry(map[string]any{
		"gcode_state":  "RUNNING",
		"subtask_name": "benchy.3mf",
	})
	if got["print_stats"]["filename"] != "benchy.3mf" {
		t.Fatalf("filename not mapped: %v", got["print_stats"])
	}
}

func TestTranslateTelemetry_IgnoresGarbage(t *testing.T) {
	t.Parallel()

	got := TranslateTelemetry(map[string]any{
		"nozzle_temper":     "not-a-number",
		"cooling_fan_speed": []any{1, 2},
	})
	if len(got) != 0 {
		t.Fatalf("expected no updates, got %v", got)
	}
}
