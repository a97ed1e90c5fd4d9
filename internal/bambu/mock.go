package bambu

import (
	"context"
	"time"
)

// runMock feeds the translator path with a simulated heating/printing cycle
// once per second. The command channel stays disconnected, matching a real
// link with no session.
func (l *Link) runMock(ctx context.Context) {
	var (
		currentNozzle = 20.0
		targetNozzle  = 0.0
		currentBed    = 20.0
		targetBed     = 0.0
		progress      = 0.0
		state         = "standby"
	)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		switch {
		case targetNozzle > currentNozzle:
			currentNozzle += 5
		case targetNozzle < currentNozzle:
			currentNozzle -= 2
		}
		switch {
		case targetBed > currentBed:
			currentBed += 2
		case targetBed < currentBed:
			currentBed -= 1
		}

		if state == "printing" {
			progress += 0.01
			if progress >= 1.0 {
				state = "complete"
				progress = 1.0
				targetNozzle = 0
				targetBed = 0
			}
		}

		if l.apply == nil {
			continue
		}
		l.apply(Update{
			"extruder":       {"temperature": currentNozzle, "target": targetNozzle},
			"heater_bed":     {"temperature": currentBed, "target": targetBed},
			"print_stats":    {"state": state, "filename": "mock_file.gcode"},
			"virtual_sdcard": {"progress": progress, "is_active": state == "printing"},
		})
	}
}
