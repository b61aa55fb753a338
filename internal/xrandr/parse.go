package xrandr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Output is one output as reported by xrandr --verbose.
type Output struct {
	Name      string
	Connected bool
	Active    bool
	Primary   bool
	X, Y      int
	Width     int
	Height    int
	WidthMM   int
	HeightMM  int
	// Rate is the current mode's refresh rate in Hz, zero when the
	// output reports no current mode clock (virtual regions).
	Rate float64
	// EDIDHex is the EDID property as a lowercase hex string, empty for
	// outputs without one (virtual regions in particular).
	EDIDHex string
}

// Monitor is one monitor object from xrandr --listmonitors.
type Monitor struct {
	Index    int
	Name     string
	Primary  bool
	X, Y     int
	Width    int
	Height   int
	WidthMM  int
	HeightMM int
	// Output is the backing output name, empty for monitors created
	// without one.
	Output string
}

var (
	geometryRe = regexp.MustCompile(`^(\d+)x(\d+)\+(\d+)\+(\d+)$`)
	physicalRe = regexp.MustCompile(`(\d+)mm\s+x\s+(\d+)mm`)
	edidLineRe = regexp.MustCompile(`^[0-9a-f]+$`)
	monitorRe  = regexp.MustCompile(`^(\d+):\s+([+*]*)(\S+)\s+(\d+)/(\d+)x(\d+)/(\d+)\+(\d+)\+(\d+)(?:\s+(\S+))?$`)
	rateRe     = regexp.MustCompile(`clock\s+([0-9.]+)Hz`)
)

// ParseQuery parses xrandr --verbose output. Only the headline, the
// EDID property block and the current mode's vertical clock are
// consumed; other detail lines are skipped.
func ParseQuery(text string) ([]Output, error) {
	var outputs []Output
	var current *Output

	inCurrentMode := false
	inEDID := false
	var edidLines []string
	flushEDID := func() {
		if inEDID && current != nil && len(edidLines) > 0 {
			current.EDIDHex = strings.Join(edidLines, "")
		}
		inEDID = false
		edidLines = nil
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "Screen "):
			continue
		case strings.HasPrefix(line, "\t"):
			stripped := strings.TrimSpace(line)
			if stripped == "EDID:" {
				inEDID = true
				edidLines = nil
				continue
			}
			if inEDID {
				if edidLineRe.MatchString(stripped) {
					edidLines = append(edidLines, stripped)
				} else {
					flushEDID()
				}
			}
		case strings.HasPrefix(line, "  "):
			stripped := strings.TrimSpace(line)
			switch {
			case strings.Contains(stripped, "MHz"):
				// Mode headline. The refresh rate lives on the vertical
				// timing line of the mode marked *current.
				inCurrentMode = strings.Contains(stripped, "*current")
			case inCurrentMode && strings.HasPrefix(stripped, "v:"):
				if m := rateRe.FindStringSubmatch(stripped); m != nil && current != nil {
					current.Rate = parseFloat(m[1])
				}
				inCurrentMode = false
			}
		default:
			flushEDID()
			inCurrentMode = false
			out, ok := parseHeadline(line)
			if !ok {
				current = nil
				continue
			}
			outputs = append(outputs, out)
			current = &outputs[len(outputs)-1]
		}
	}
	flushEDID()
	return outputs, nil
}

// parseHeadline parses one output headline, e.g.
// "DP-1 connected primary 1920x1080+0+0 (0x4b) normal ... 600mm x 340mm".
func parseHeadline(line string) (Output, bool) {
	line = strings.ReplaceAll(line, "unknown connection", "unknown-connection")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Output{}, false
	}
	state := fields[1]
	if state != "connected" && state != "disconnected" && state != "unknown-connection" {
		return Output{}, false
	}

	out := Output{
		Name:      fields[0],
		Connected: state == "connected" || state == "unknown-connection",
	}
	for _, f := range fields[2:] {
		if f == "primary" {
			out.Primary = true
			continue
		}
		if m := geometryRe.FindStringSubmatch(f); m != nil {
			out.Active = true
			out.Width = atoi(m[1])
			out.Height = atoi(m[2])
			out.X = atoi(m[3])
			out.Y = atoi(m[4])
		}
	}
	if m := physicalRe.FindStringSubmatch(line); m != nil {
		out.WidthMM = atoi(m[1])
		out.HeightMM = atoi(m[2])
	}
	return out, true
}

// ParseMonitors parses xrandr --listmonitors output.
func ParseMonitors(text string) ([]Monitor, error) {
	var monitors []Monitor
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Monitors:") {
			continue
		}
		m := monitorRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("unparseable monitor line %q", line)
		}
		monitors = append(monitors, Monitor{
			Index:    atoi(m[1]),
			Name:     m[3],
			Primary:  strings.Contains(m[2], "*"),
			Width:    atoi(m[4]),
			WidthMM:  atoi(m[5]),
			Height:   atoi(m[6]),
			HeightMM: atoi(m[7]),
			X:        atoi(m[8]),
			Y:        atoi(m[9]),
			Output:   m[10],
		})
	}
	return monitors, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
