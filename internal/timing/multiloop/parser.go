package multiloop

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/timing/model"
)

// FieldSeparator delimits fields within a multiloop record.
const FieldSeparator = byte(0x7F)

// ErrUnknownRecord marks a record prefix the parser does not recognize.
var ErrUnknownRecord = errors.New("multiloop: unknown record type")

// ErrShortRecord marks a recognized record with too few fields.
var ErrShortRecord = errors.New("multiloop: record too short")

// ParseBatch parses a newline-delimited buffer of multiloop records in
// arrival order. Unparseable records are logged at warn and skipped.
func ParseBatch(data string) []Record {
	logger := log.WithComponent("multiloop")
	var out []Record
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			metrics.IncParseError("multiloop", prefixOf(line))
			logger.Warn().Err(err).Str(log.FieldRecord, line).Msg("skipping unparseable record")
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ParseRecord parses a single separator-delimited record. Malformed hex
// fields inside a recognized record default to zero.
func ParseRecord(raw string) (Record, error) {
	fields := strings.Split(raw, string(FieldSeparator))
	if len(fields) == 0 || fields[0] == "" {
		return nil, ErrShortRecord
	}
	switch fields[0] {
	case "$H":
		return parseHeartbeat(fields)
	case "$E":
		return parseEntry(fields)
	case "$C":
		return parseCompletedLap(fields)
	case "$S":
		return parseCompletedSection(fields)
	case "$L":
		return parseLineCrossing(fields)
	case "$F":
		return parseFlagRecord(fields)
	case "$R":
		return parseRun(fields)
	case "$T":
		return parseTrack(fields)
	case "$A":
		return parseAnnouncement(fields)
	case "$V":
		return parseVersion(fields)
	case "$N":
		return parseNewLeader(fields)
	case "$I":
		return parseInvalidatedLap(fields)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, fields[0])
	}
}

func parseHeartbeat(f []string) (Record, error) {
	if len(f) < 5 {
		return nil, ErrShortRecord
	}
	return Heartbeat{
		TimeOfDay: hexMS(f[1]),
		RaceTime:  hexMS(f[2]),
		LapsToGo:  hexInt(f[3]),
		Flag:      model.ParseFlag(f[4]),
	}, nil
}

func parseEntry(f []string) (Record, error) {
	if len(f) < 5 {
		return nil, ErrShortRecord
	}
	return Entry{
		Number:        f[1],
		UniqueID:      uint32(hexInt(f[2])),
		DriverName:    f[3],
		StartPosition: hexInt(f[4]),
	}, nil
}

func parseCompletedLap(f []string) (Record, error) {
	if len(f) < 17 {
		return nil, ErrShortRecord
	}
	return CompletedLap{
		Number:              f[1],
		UniqueID:            uint32(hexInt(f[2])),
		CompletedLaps:       hexInt(f[3]),
		LastLapTime:         hexMS(f[4]),
		TotalTime:           hexMS(f[5]),
		Position:            hexInt(f[6]),
		PitStopCount:        hexInt(f[7]),
		LastLapPitted:       hexInt(f[8]),
		StartPosition:       hexInt(f[9]),
		LapsLed:             hexInt(f[10]),
		CurrentStatus:       f[11],
		BestLapTime:         hexMS(f[12]),
		TimeBehindLeader:    hexMS(f[13]),
		LapsBehindLeader:    hexInt(f[14]),
		TimeBehindPreceding: hexMS(f[15]),
		LapsBehindPreceding: hexInt(f[16]),
	}, nil
}

func parseCompletedSection(f []string) (Record, error) {
	if len(f) < 7 {
		return nil, ErrShortRecord
	}
	return CompletedSection{
		Number:          f[1],
		UniqueID:        uint32(hexInt(f[2])),
		SectionID:       f[3],
		ElapsedTime:     hexMS(f[4]),
		LastSectionTime: hexMS(f[5]),
		LastLap:         hexInt(f[6]),
	}, nil
}

func parseLineCrossing(f []string) (Record, error) {
	if len(f) < 8 {
		return nil, ErrShortRecord
	}
	return LineCrossing{
		Number:         f[1],
		UniqueID:       uint32(hexInt(f[2])),
		Timeline:       f[3],
		Source:         f[4],
		ElapsedTime:    hexMS(f[5]),
		TrackStatus:    f[6],
		CrossingStatus: f[7],
	}, nil
}

func parseFlagRecord(f []string) (Record, error) {
	if len(f) < 11 {
		return nil, ErrShortRecord
	}
	speed, _ := strconv.ParseFloat(strings.TrimSpace(f[10]), 64)
	return FlagRecord{
		TrackStatus:      model.ParseFlag(f[1]),
		GreenTimeMS:      hexInt64(f[2]),
		GreenLaps:        hexInt(f[3]),
		YellowTimeMS:     hexInt64(f[4]),
		YellowLaps:       hexInt(f[5]),
		NumberOfYellows:  hexInt(f[6]),
		RedTimeMS:        hexInt64(f[7]),
		CurrentLeader:    f[8],
		LeadChanges:      hexInt(f[9]),
		AverageRaceSpeed: speed,
	}, nil
}

func parseRun(f []string) (Record, error) {
	if len(f) < 4 {
		return nil, ErrShortRecord
	}
	return Run{Name: f[1], RunType: f[2], StartTime: hexMS(f[3])}, nil
}

func parseTrack(f []string) (Record, error) {
	if len(f) < 4 {
		return nil, ErrShortRecord
	}
	t := Track{Name: f[1], ShortName: f[2], Distance: f[3]}
	if len(f) > 4 {
		t.Sections = append(t.Sections, f[4:]...)
	}
	return t, nil
}

func parseAnnouncement(f []string) (Record, error) {
	if len(f) < 5 {
		return nil, ErrShortRecord
	}
	return Announcement{
		Sequence: hexInt(f[1]),
		Action:   f[2],
		Priority: f[3],
		Text:     f[4],
	}, nil
}

func parseVersion(f []string) (Record, error) {
	if len(f) < 3 {
		return nil, ErrShortRecord
	}
	return Version{Major: hexInt(f[1]), Minor: hexInt(f[2])}, nil
}

func parseNewLeader(f []string) (Record, error) {
	if len(f) < 5 {
		return nil, ErrShortRecord
	}
	return NewLeader{
		Number:      f[1],
		UniqueID:    uint32(hexInt(f[2])),
		Lap:         hexInt(f[3]),
		ElapsedTime: hexMS(f[4]),
	}, nil
}

func parseInvalidatedLap(f []string) (Record, error) {
	if len(f) < 3 {
		return nil, ErrShortRecord
	}
	return InvalidatedLap{Number: f[1], UniqueID: uint32(hexInt(f[2]))}, nil
}

// hexInt parses a hex field, defaulting to 0 on malformed input.
func hexInt(s string) int {
	return int(hexInt64(s))
}

func hexInt64(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 16, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// hexMS parses a hex millisecond field into a duration.
func hexMS(s string) time.Duration {
	return time.Duration(hexInt64(s)) * time.Millisecond
}

func prefixOf(line string) string {
	if i := strings.IndexByte(line, FieldSeparator); i > 0 {
		return line[:i]
	}
	if len(line) > 8 {
		return line[:8]
	}
	return line
}
