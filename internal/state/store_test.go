package state

import (
	"fmt"
	"reflect"
	"testing"
)

func TestApplyUpdate_DeltaContainsOnlyChanges(t *testing.T) {
	t.Parallel()

	s := NewStore()
	delta, _ := s.ApplyUpdate(Update{
		"extruder":   {"temperature": 210.0, "target": 0.0}, // target unchanged
		"heater_bed": {"temperature": 0.0},                  // unchanged
	})

	want := Update{"extruder": {"temperature": 210.0}}
	if !reflect.DeepEqual(delta, want) {
		t.Fatalf("delta = %v, want %v", delta, want)
	}
}

func TestApplyUpdate_IdempotentConvergence(t *testing.T) {
	t.Parallel()

	s := NewStore()
	update := Update{
		"extruder":    {"temperature": 55.5},
		"print_stats": {"state": "printing"},
	}

	first, _ := s.ApplyUpdate(update)
	if first == nil {
		t.Fatalf("first apply should produce a delta")
	}
	second, _ := s.ApplyUpdate(update)
	if second != nil {
		t.Fatalf("second identical apply should produce no delta, got %v", second)
	}
}

func TestApplyUpdate_UnknownSubsystemIgnored(t *testing.T) {
	t.Parallel()

	s := NewStore()
	delta, _ := s.ApplyUpdate(Update{"chamber_sensor": {"temperature": 31.0}})
	if delta != nil {
		t.Fatalf("unknown subsystem should not produce a delta, got %v", delta)
	}
	if _, ok := s.GetObject("chamber_sensor"); ok {
		t.Fatalf("unknown subsystem must not be added to the schema")
	}
}

func TestApplyUpdate_NeverEmitsEmptyDelta(t *testing.T) {
	t.Parallel()

	s := NewStore()
	delta, _ := s.ApplyUpdate(Update{"fan": {"speed": 0.0}})
	if delta != nil {
		t.Fatalf("no-change update must return nil delta, got %v", delta)
	}
}

func TestGetState_SnapshotIsIsolated(t *testing.T) {
	t.Parallel()

	s := NewStore()
	snap := s.GetState()
	snap["extruder"]["temperature"] = 999.0

	fresh := s.GetState()
	if fresh["extruder"]["temperature"] == 999.0 {
		t.Fatalf("mutating a snapshot must not leak into the store")
	}
}

func TestTemperatureHistory_Bounded(t *testing.T) {
	t.Parallel()

	s := NewStore()
	for i := 0; i < maxTempSamples+100; i++ {
		s.ApplyUpdate(Update{"extruder": {"temperature": float64(i)}})
	}

	history := s.GetTemperatureHistory(false)
	temps := history["extruder"]["temperatures"]
	if len(temps) != maxTempSamples {
		t.Fatalf("expected %d samples, got %d", maxTempSamples, len(temps))
	}
	// Oldest evicted first: the series must end at the latest value.
	if temps[len(temps)-1] != float64(maxTempSamples+99) {
		t.Fatalf("newest sample missing, tail = %v", temps[len(temps)-1])
	}
}

func TestTemperatureHistory_SeededBeforeFirstSample(t *testing.T) {
	t.Parallel()

	s := NewStore()
	history := s.GetTemperatureHistory(false)

	for _, sensor := range []string{"extruder", "heater_bed"} {
		series, ok := history[sensor]
		if !ok {
			t.Fatalf("missing history for %s", sensor)
		}
		if len(series["temperatures"]) == 0 {
			t.Fatalf("expected at least one seeded sample for %s", sensor)
		}
	}
}

func TestTemperatureHistory_SampledEvenWithoutFieldChange(t *testing.T) {
	t.Parallel()

	s := NewStore()
	before := len(s.GetTemperatureHistory(false)["extruder"]["temperatures"])

	// Same value: no delta, but the tracked sensor still gets a sample.
	s.ApplyUpdate(Update{"extruder": {"temperature": 0.0}})

	after := len(s.GetTemperatureHistory(false)["extruder"]["temperatures"])
	if after != before+1 {
		t.Fatalf("expected %d samples, got %d", before+1, after)
	}
}

func TestEventTime_AdvancesOnDelta(t *testing.T) {
	t.Parallel()

	s := NewStore()
	before := s.EventTime()
	_, at := s.ApplyUpdate(Update{"extruder": {"temperature": 42.0}})
	if at < before {
		t.Fatalf("event time went backwards: %f -> %f", before, at)
	}
	if s.EventTime() != at {
		t.Fatalf("EventTime should match the returned apply time")
	}
}

func TestObjectNames_CoversSchema(t *testing.T) {
	t.Parallel()

	s := NewStore()
	names := map[string]bool{}
	for _, n := range s.ObjectNames() {
		names[n] = true
	}
	for _, want := range []string{
		"extruder", "heater_bed", "fan", "print_stats", "virtual_sdcard",
		"display_status", "toolhead", "webhooks", "configfile", "heaters",
		"output_pin caselight",
	} {
		if !names[want] {
			t.Fatalf("schema missing %q (have %v)", want, s.ObjectNames())
		}
	}
}

func ExampleStore_ApplyUpdate() {
	s := NewStore()
	delta, _ := s.ApplyUpdate(Update{"print_stats": {"state": "printing"}})
	fmt.Println(delta["print_stats"]["state"])
	// Output: printing
}
