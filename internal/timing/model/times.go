package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NoTime marks an unset lap or total time. Wire times are never negative, so
// the sentinel cannot collide with real data.
const NoTime = time.Duration(-1)

// ParseRaceTime parses a wire clock of the form "HH:MM:SS", "HH:MM:SS.fff" or
// "MM:SS.fff" into a duration. It returns NoTime and false for anything it
// cannot understand.
func ParseRaceTime(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoTime, false
	}

	var millis int64
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		frac := s[dot+1:]
		s = s[:dot]
		// Normalize fractional part to milliseconds.
		for len(frac) < 3 {
			frac += "0"
		}
		v, err := strconv.ParseInt(frac[:3], 10, 64)
		if err != nil {
			return NoTime, false
		}
		millis = v
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return NoTime, false
	}
	var total int64
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || v < 0 {
			return NoTime, false
		}
		total = total*60 + v
	}
	return time.Duration(total)*time.Second + time.Duration(millis)*time.Millisecond, true
}

// FormatLapTime renders a duration as "HH:MM:SS.fff", the canonical car time
// representation. NoTime renders as the empty string.
func FormatLapTime(d time.Duration) string {
	if d < 0 {
		return ""
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// FormatGap renders a time difference as "m:ss.fff", or "s.fff" when under a
// minute.
func FormatGap(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	ms := d.Milliseconds()
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	if m == 0 {
		return fmt.Sprintf("%d.%03d", s, ms)
	}
	return fmt.Sprintf("%d:%02d.%03d", m, s, ms)
}

// FormatLapCount renders a whole-lap difference as "N lap" or "N laps".
func FormatLapCount(laps int) string {
	if laps < 0 {
		laps = -laps
	}
	if laps == 1 {
		return "1 lap"
	}
	return fmt.Sprintf("%d laps", laps)
}
