package normalize

import (
	"strings"
	"time"
)

// cadLine is one parsed CAD record
type cadLine struct {
	at   time.Duration // wall-clock seconds since midnight, relative within the log
	unit string
	text string
}

// cad timestamp layouts tried in order
var cadClockLayouts = []string{"15:04:05", "15:04"}

// parseCADLine accepts two shapes seen in agency exports
//
//	delimited:   "15:04:05|UNIT12|subject detained at scene"  (also comma separated)
//	fixed-width: "15:04:05 UNIT12   subject detained at scene" (cols 0-8, 9-17, 18-)
func parseCADLine(line string) (cadLine, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return cadLine{}, false
	}

	if sep := delimiterOf(line); sep != 0 {
		parts := strings.SplitN(line, string(sep), 3)
		if len(parts) < 3 {
			return cadLine{}, false
		}
		at, ok := parseCADClock(strings.TrimSpace(parts[0]))
		if !ok {
			return cadLine{}, false
		}
		return cadLine{
			at:   at,
			unit: strings.TrimSpace(parts[1]),
			text: strings.TrimSpace(parts[2]),
		}, true
	}

	// fixed-width fallback
	if len(line) < 19 {
		return cadLine{}, false
	}
	at, ok := parseCADClock(strings.TrimSpace(line[0:9]))
	if !ok {
		return cadLine{}, false
	}
	return cadLine{
		at:   at,
		unit: strings.TrimSpace(line[9:18]),
		text: strings.TrimSpace(line[18:]),
	}, true
}

func delimiterOf(line string) byte {
	for _, c := range []byte{'|', ',', '\t'} {
		if strings.IndexByte(line, c) > 0 {
			return c
		}
	}
	return 0
}

func parseCADClock(s string) (time.Duration, bool) {
	for _, layout := range cadClockLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second
		return d, true
	}
	return 0, false
}
