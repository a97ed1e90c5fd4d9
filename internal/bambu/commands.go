package bambu

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Request is one JSON payload for the printer's request topic. The top-level
// key is the vendor domain tag ("print" or "system").
type Request map[string]any

// The printer ignores sequence correlation for our purposes, so every
// request carries the same placeholder id.
const placeholderSeqID = "0"

// ValidationError is returned for rejected command parameters. It carries a
// protocol error code so the RPC layer can surface it directly.
type ValidationError struct {
	Code    int
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{Code: 400, Message: fmt.Sprintf(format, args...)}
}

// --- Fans ---

type FanTarget string

const (
	FanPart    FanTarget = "part"
	FanAux     FanTarget = "aux"
	FanChamber FanTarget = "chamber"
)

var fanAliases = map[string]FanTarget{
	"part":         FanPart,
	"part_cooling": FanPart,
	"toolhead":     FanPart,
	"aux":          FanAux,
	"auxiliary":    FanAux,
	"chamber":      FanChamber,
	"rear":         FanChamber,
	"case":         FanChamber,
	"exhaust":      FanChamber,
}

// M106 channel numbers on the printer's mainboard.
var fanChannels = map[FanTarget]int{
	FanPart:    1,
	FanAux:     2,
	FanChamber: 3,
}

// FanCommand is a validated fan intent plus the exact line it encodes to.
type FanCommand struct {
	Target FanTarget
	Speed  int // 0-255
	Gcode  string
}

// NormalizeFanTarget resolves a dashboard fan name (or alias) to a target.
// An empty name means the part cooling fan.
func NormalizeFanTarget(name string) (FanTarget, error) {
	if strings.TrimSpace(name) == "" {
		return FanPart, nil
	}
	if t, ok := fanAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return "", invalidf("unknown fan target %q (supported: part, aux, chamber)", name)
}

// NormalizeFanSpeed accepts a 0-255 integer, a 0.0-1.0 fraction, or an
// "NN%" string and returns the 0-255 scale, clamped.
func NormalizeFanSpeed(value any) (int, error) {
	numeric, err := parseFanNumeric(value)
	if err != nil {
		return 0, err
	}

	var scaled float64
	if numeric >= 0.0 && numeric <= 1.0 {
		scaled = math.Round(numeric * 255)
	} else {
		scaled = math.Round(numeric)
	}

	if scaled < 0 {
		scaled = 0
	}
	if scaled > 255 {
		scaled = 255
	}
	return int(scaled), nil
}

func parseFanNumeric(value any) (float64, error) {
	switch v := value.(type) {
	case bool:
		return 0, invalidf("fan speed must be a number or percent value")
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, invalidf("fan speed must be a number or percent value")
		}
		if strings.HasSuffix(s, "%") {
			pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
			if err != nil {
				return 0, invalidf("unparseable fan percent %q", v)
			}
			return pct / 100.0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, invalidf("unparseable fan speed %q", v)
		}
		return f, nil
	default:
		return 0, invalidf("fan speed must be a number or percent value")
	}
}

// BuildFanCommand validates and encodes a fan speed change.
func BuildFanCommand(fan string, speed any) (FanCommand, error) {
	target, err := NormalizeFanTarget(fan)
	if err != nil {
		return FanCommand{}, err
	}
	value, err := NormalizeFanSpeed(speed)
	if err != nil {
		return FanCommand{}, err
	}
	return FanCommand{
		Target: target,
		Speed:  value,
		Gcode:  fmt.Sprintf("M106 P%d S%d\n", fanChannels[target], value),
	}, nil
}

// --- Heaters ---

type HeaterTarget string

const (
	HeaterNozzle HeaterTarget = "extruder"
	HeaterBed    HeaterTarget = "heater_bed"
)

type heaterLimits struct {
	min     float64
	max     float64
	safeMax float64
}

var heaterLimitTable = map[HeaterTarget]heaterLimits{
	HeaterNozzle: {min: 0, max: 300, safeMax: 280},
	HeaterBed:    {min: 0, max: 120, safeMax: 100},
}

// HeaterCommand is a validated heater intent plus its encoded line.
// Unsafe is set when the target exceeds the soft safe threshold; the
// command is still valid (warn-but-allow).
type HeaterCommand struct {
	Heater HeaterTarget
	Target float64
	Wait   bool
	Unsafe bool
	Gcode  string
}

// NormalizeHeaterTarget resolves dashboard heater names.
func NormalizeHeaterTarget(name string) (HeaterTarget, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "extruder", "nozzle":
		return HeaterNozzle, nil
	case "heater_bed", "bed":
		return HeaterBed, nil
	default:
		return "", invalidf("unknown heater %q", name)
	}
}

// BuildHeaterCommand validates the target temperature against the hard
// range and encodes the matching set-temperature line (wait variant when
// requested).
func BuildHeaterCommand(heater HeaterTarget, target float64, wait bool) (HeaterCommand, error) {
	limits, ok := heaterLimitTable[heater]
	if !ok {
		return HeaterCommand{}, invalidf("unknown heater %q", heater)
	}
	if math.IsNaN(target) || target < limits.min || target > limits.max {
		return HeaterCommand{}, invalidf("temperature %.1f°C out of range (%.0f-%.0f°C) for %s",
			target, limits.min, limits.max, heater)
	}

	var opcode string
	switch {
	case heater == HeaterBed && wait:
		opcode = "M190"
	case heater == HeaterBed:
		opcode = "M140"
	case wait:
		opcode = "M109"
	default:
		opcode = "M104"
	}

	rounded := int(math.Round(target))
	return HeaterCommand{
		Heater: heater,
		Target: target,
		Wait:   wait,
		Unsafe: target > limits.safeMax,
		Gcode:  fmt.Sprintf("%s S%d \n", opcode, rounded),
	}, nil
}

// --- Request envelopes ---

func printRequest(command string, extra map[string]any) Request {
	body := map[string]any{
		"sequence_id": placeholderSeqID,
		"command":     command,
	}
	for k, v := range extra {
		body[k] = v
	}
	return Request{"print": body}
}

// GcodeLineRequest wraps a raw device-language line.
func GcodeLineRequest(line string) Request {
	return printRequest("gcode_line", map[string]any{"param": line})
}

func PauseRequest() Request  { return printRequest("pause", nil) }
func ResumeRequest() Request { return printRequest("resume", nil) }
func StopRequest() Request   { return printRequest("stop", nil) }

// LightRequests encodes a chamber light toggle. The printer firmware has
// accepted the ledctrl command under either domain tag depending on
// version, so both envelope variants are produced.
func LightRequests(on bool) []Request {
	mode := "off"
	if on {
		mode = "on"
	}
	body := map[string]any{
		"sequence_id":   placeholderSeqID,
		"command":       "ledctrl",
		"led_node":      "chamber_light",
		"led_mode":      mode,
		"led_on_time":   500,
		"led_off_time":  500,
		"loop_times":    0,
		"interval_time": 0,
	}
	printBody := make(map[string]any, len(body))
	systemBody := make(map[string]any, len(body))
	for k, v := range body {
		printBody[k] = v
		systemBody[k] = v
	}
	return []Request{
		{"print": printBody},
		{"system": systemBody},
	}
}
