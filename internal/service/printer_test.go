package service

import (
	"context"
	"errors"
	"testing"

	"bambu_bridge/internal/bambu"
	"bambu_bridge/internal/logger"
	"bambu_bridge/internal/state"
)

type fakeLink struct {
	published []bambu.Request
	connected bool
	err       error
}

func (f *fakeLink) Publish(req bambu.Request) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, req)
	return nil
}

func (f *fakeLink) PublishAll(reqs []bambu.Request) error {
	for _, req := range reqs {
		if err := f.Publish(req); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeLink) Connected() bool { return f.connected }

type echoRecorder struct {
	updates []state.Update
}

func (e *echoRecorder) apply(u state.Update) { e.updates = append(e.updates, u) }

func newTestPrinter(link *fakeLink) (*PrinterService, *echoRecorder) {
	echo := &echoRecorder{}
	return NewPrinterService(link, echo.apply, logger.Get(logger.ErrorLevel)), echo
}

func gcodeLine(req bambu.Request) string {
	print, ok := req["print"].(map[string]any)
	if !ok {
		return ""
	}
	param, _ := print["param"].(string)
	return param
}

func TestPrinter_PauseResumeCancel(t *testing.T) {
	link := &fakeLink{}
	svc, _ := newTestPrinter(link)
	ctx := context.Background()

	if err := svc.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := svc.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := svc.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	want := []string{"pause", "resume", "stop"}
	if len(link.published) != len(want) {
		t.Fatalf("published %d requests, want %d", len(link.published), len(want))
	}
	for i, cmd := range want {
		print := link.published[i]["print"].(map[string]any)
		if print["command"] != cmd {
			t.Fatalf("request %d: command %v, want %s", i, print["command"], cmd)
		}
	}
}

func TestPrinter_SetFanSpeedEchoesRatio(t *testing.T) {
	link := &fakeLink{}
	svc, echo := newTestPrinter(link)

	if err := svc.SetFanSpeed(context.Background(), "aux", "50%"); err != nil {
		t.Fatalf("SetFanSpeed: %v", err)
	}

	if len(link.published) != 1 {
		t.Fatalf("expected 1 request, got %d", len(link.published))
	}
	if got := gcodeLine(link.published[0]); got != "M106 P2 S128\n" {
		t.Fatalf("gcode %q", got)
	}

	if len(echo.updates) != 1 {
		t.Fatalf("expected 1 echo, got %d", len(echo.updates))
	}
	aux, ok := echo.updates[0]["fan_aux"]
	if !ok {
		t.Fatalf("aux echo missing: %v", echo.updates[0])
	}
	speed := aux["speed"].(float64)
	if speed < 0.5 || speed > 0.51 {
		t.Fatalf("echoed ratio %v", speed)
	}
}

func TestPrinter_SetFanSpeedRejectsGarbage(t *testing.T) {
	link := &fakeLink{}
	svc, echo := newTestPrinter(link)

	err := svc.SetFanSpeed(context.Background(), "aux", "fast")
	var verr *bambu.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(link.published) != 0 || len(echo.updates) != 0 {
		t.Fatalf("rejected command must not publish or echo")
	}
}

func TestPrinter_SetHeaterEchoesTarget(t *testing.T) {
	link := &fakeLink{}
	svc, echo := newTestPrinter(link)

	if err := svc.SetHeaterTemperature(context.Background(), "bed", 60, false); err != nil {
		t.Fatalf("SetHeaterTemperature: %v", err)
	}
	if got := gcodeLine(link.published[0]); got != "M140 S60 \n" {
		t.Fatalf("gcode %q", got)
	}
	bed := echo.updates[0]["heater_bed"]
	if bed["target"].(float64) != 60 {
		t.Fatalf("echoed target %v", bed["target"])
	}
}

func TestPrinter_SetLightPublishesBothEnvelopes(t *testing.T) {
	link := &fakeLink{}
	svc, echo := newTestPrinter(link)

	if err := svc.SetLight(context.Background(), true); err != nil {
		t.Fatalf("SetLight: %v", err)
	}
	if len(link.published) != 2 {
		t.Fatalf("light control publishes print+system envelopes, got %d", len(link.published))
	}
	pin := echo.updates[0]["output_pin caselight"]
	if pin["value"].(float64) != 1.0 {
		t.Fatalf("echoed value %v", pin["value"])
	}
}

func TestPrinter_RunScriptInterceptsMacros(t *testing.T) {
	link := &fakeLink{}
	svc, echo := newTestPrinter(link)

	script := "SET_PIN PIN=caselight VALUE=1.00\n" +
		"SET_FAN_SPEED FAN=part SPEED=255\n" +
		"M104 S210\n" +
		"G28\n"
	if err := svc.RunScript(context.Background(), script); err != nil {
		t.Fatalf("RunScript: %v", err)
	}

	// 2 light envelopes + fan gcode + heater gcode + raw G28.
	if len(link.published) != 5 {
		t.Fatalf("published %d requests, want 5", len(link.published))
	}
	if got := gcodeLine(link.published[4]); got != "G28" {
		t.Fatalf("raw line forwarded as %q", got)
	}
	if len(echo.updates) != 3 {
		t.Fatalf("expected 3 echoes (light, fan, heater), got %d", len(echo.updates))
	}
}

func TestPrinter_RunScriptHeaterMissingS(t *testing.T) {
	link := &fakeLink{}
	svc, _ := newTestPrinter(link)

	err := svc.RunScript(context.Background(), "M109")
	var verr *bambu.ValidationError
	if !errors.As(err, &verr) || verr.Code != 400 {
		t.Fatalf("expected 400 validation error, got %v", err)
	}
}

func TestPrinter_RunScriptUnknownPinForwarded(t *testing.T) {
	link := &fakeLink{}
	svc, echo := newTestPrinter(link)

	if err := svc.RunScript(context.Background(), "SET_PIN PIN=beeper VALUE=1"); err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if len(link.published) != 1 {
		t.Fatalf("unknown pin should forward raw, got %d requests", len(link.published))
	}
	if len(echo.updates) != 0 {
		t.Fatalf("unknown pin must not echo state")
	}
}

func TestPrinter_PublishFailurePropagates(t *testing.T) {
	link := &fakeLink{err: bambu.ErrNotConnected}
	svc, echo := newTestPrinter(link)

	if err := svc.Pause(context.Background()); !errors.Is(err, bambu.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := svc.SetLight(context.Background(), true); !errors.Is(err, bambu.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if len(echo.updates) != 0 {
		t.Fatalf("failed publish must not echo state")
	}
}
