package service

import (
	"context"
	"strconv"
	"strings"

	"bambu_bridge/internal/bambu"
	"bambu_bridge/internal/logger"
	"bambu_bridge/internal/state"
)

// PrinterService translates Moonraker control operations into vendor
// command envelopes and echoes the resulting state locally so dashboards
// update before the next telemetry frame arrives.
type PrinterService struct {
	link DeviceLink
	echo func(state.Update)
	log  *logger.Logger
}

func NewPrinterService(link DeviceLink, echo func(state.Update), log *logger.Logger) *PrinterService {
	if echo == nil {
		echo = func(state.Update) {}
	}
	return &PrinterService{link: link, echo: echo, log: log}
}

func (s *PrinterService) Connected() bool { return s.link.Connected() }

func (s *PrinterService) Pause(ctx context.Context) error {
	return s.link.Publish(bambu.PauseRequest())
}

func (s *PrinterService) Resume(ctx context.Context) error {
	return s.link.Publish(bambu.ResumeRequest())
}

func (s *PrinterService) Cancel(ctx context.Context) error {
	return s.link.Publish(bambu.StopRequest())
}

// StartPrint acknowledges the request without driving the device.
// TODO: send the project_file envelope once 3MF plate handling lands.
func (s *PrinterService) StartPrint(ctx context.Context, filename string) error {
	if filename == "" {
		return &bambu.ValidationError{Code: 400, Message: "filename is required"}
	}
	s.log.Infow("start_print_requested", "filename", filename)
	return nil
}

func (s *PrinterService) SetFanSpeed(ctx context.Context, fan string, speed any) error {
	cmd, err := bambu.BuildFanCommand(fan, speed)
	if err != nil {
		return err
	}
	if err := s.link.Publish(bambu.GcodeLineRequest(cmd.Gcode)); err != nil {
		return err
	}
	s.echoFan(cmd)
	return nil
}

// echoFan mirrors the commanded duty into the state objects each target
// fan surfaces under.
func (s *PrinterService) echoFan(cmd bambu.FanCommand) {
	ratio := 0.0
	if cmd.Speed > 0 {
		ratio = float64(cmd.Speed) / 255.0
	}
	switch cmd.Target {
	case bambu.FanPart:
		s.echo(state.Update{"fan": {"speed": ratio}})
	case bambu.FanAux:
		s.echo(state.Update{
			"fan_generic aux": {"speed": ratio},
			"fan_aux":         {"speed": ratio},
		})
	case bambu.FanChamber:
		s.echo(state.Update{
			"fan_generic chamber": {"speed": ratio},
			"fan_chamber":         {"speed": ratio},
		})
	}
}

func (s *PrinterService) SetHeaterTemperature(ctx context.Context, heater string, target float64, wait bool) error {
	ht, err := bambu.NormalizeHeaterTarget(heater)
	if err != nil {
		return err
	}
	cmd, err := bambu.BuildHeaterCommand(ht, target, wait)
	if err != nil {
		return err
	}
	if cmd.Unsafe {
		s.log.Warnw("heater_target_above_safe_limit", "heater", string(ht), "target", cmd.Target)
	}
	if err := s.link.Publish(bambu.GcodeLineRequest(cmd.Gcode)); err != nil {
		return err
	}
	s.echo(state.Update{string(ht): {"target": cmd.Target}})
	return nil
}

func (s *PrinterService) SetLight(ctx context.Context, on bool) error {
	if err := s.link.PublishAll(bambu.LightRequests(on)); err != nil {
		return err
	}
	value := 0.0
	if on {
		value = 1.0
	}
	s.echo(state.Update{"output_pin caselight": {"value": value}})
	return nil
}

// RunScript executes a console script line by line. Known Klipper macros
// are translated to vendor commands; everything else goes to the device
// verbatim.
func (s *PrinterService) RunScript(ctx context.Context, script string) error {
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := s.runLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *PrinterService) runLine(ctx context.Context, line string) error {
	upper := strings.ToUpper(line)
	switch {
	case strings.HasPrefix(upper, "SET_PIN"):
		if handled, err := s.runSetPin(ctx, line); handled || err != nil {
			return err
		}
	case strings.HasPrefix(upper, "SET_FAN_SPEED"):
		return s.runSetFanSpeed(ctx, line)
	case strings.HasPrefix(upper, "SET_HEATER_TEMPERATURE"):
		return s.runSetHeater(ctx, line)
	case strings.HasPrefix(upper, "M104"),
		strings.HasPrefix(upper, "M109"),
		strings.HasPrefix(upper, "M140"),
		strings.HasPrefix(upper, "M190"):
		return s.runHeaterGcode(ctx, upper)
	}
	s.log.Debugw("gcode_forwarded", "line", line)
	return s.link.Publish(bambu.GcodeLineRequest(line))
}

// runSetPin handles "SET_PIN PIN=caselight VALUE=1.00". Other pins fall
// through to raw forwarding.
func (s *PrinterService) runSetPin(ctx context.Context, line string) (bool, error) {
	var pin string
	value := 0.0
	for _, part := range strings.Fields(line) {
		upper := strings.ToUpper(part)
		switch {
		case strings.HasPrefix(upper, "PIN="):
			pin = part[len("PIN="):]
		case strings.HasPrefix(upper, "VALUE="):
			v, err := strconv.ParseFloat(part[len("VALUE="):], 64)
			if err != nil {
				return false, &bambu.ValidationError{Code: 400, Message: "invalid SET_PIN value: " + line}
			}
			value = v
		}
	}
	if pin != "caselight" {
		return false, nil
	}
	return true, s.SetLight(ctx, value > 0)
}

// runSetFanSpeed handles "SET_FAN_SPEED FAN=<name> SPEED=<value>".
func (s *PrinterService) runSetFanSpeed(ctx context.Context, line string) error {
	var fan, speed string
	for _, part := range strings.Fields(line) {
		upper := strings.ToUpper(part)
		switch {
		case strings.HasPrefix(upper, "FAN="):
			fan = part[len("FAN="):]
		case strings.HasPrefix(upper, "SPEED="):
			speed = part[len("SPEED="):]
		}
	}
	return s.SetFanSpeed(ctx, fan, speed)
}

// runSetHeater handles "SET_HEATER_TEMPERATURE HEATER=<name>
// TARGET=<value> [WAIT=<bool>]".
func (s *PrinterService) runSetHeater(ctx context.Context, line string) error {
	var (
		heater string
		target *float64
		wait   bool
	)
	for _, part := range strings.Fields(line) {
		upper := strings.ToUpper(part)
		switch {
		case strings.HasPrefix(upper, "HEATER="):
			heater = part[len("HEATER="):]
		case strings.HasPrefix(upper, "TARGET="):
			v, err := strconv.ParseFloat(part[len("TARGET="):], 64)
			if err != nil {
				return &bambu.ValidationError{Code: 400, Message: "invalid SET_HEATER_TEMPERATURE command: " + line}
			}
			target = &v
		case strings.HasPrefix(upper, "WAIT="):
			w := strings.ToLower(part[len("WAIT="):])
			wait = w == "1" || w == "true" || w == "yes" || w == "on"
		}
	}
	if heater == "" || target == nil {
		return &bambu.ValidationError{Code: 400, Message: "invalid SET_HEATER_TEMPERATURE command: " + line}
	}
	return s.SetHeaterTemperature(ctx, heater, *target, wait)
}

// runHeaterGcode handles M104/M109/M140/M190 with an S parameter.
func (s *PrinterService) runHeaterGcode(ctx context.Context, upper string) error {
	parts := strings.Fields(upper)
	cmd := parts[0]

	var target *float64
	for _, part := range parts[1:] {
		if strings.HasPrefix(part, "S") {
			v, err := strconv.ParseFloat(part[1:], 64)
			if err != nil {
				break
			}
			target = &v
			break
		}
	}
	if target == nil {
		return &bambu.ValidationError{Code: 400, Message: "missing S parameter in heater command: " + upper}
	}

	heater := "extruder"
	if cmd == "M140" || cmd == "M190" {
		heater = "heater_bed"
	}
	wait := cmd == "M109" || cmd == "M190"
	return s.SetHeaterTemperature(ctx, heater, *target, wait)
}
