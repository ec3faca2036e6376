package rmonitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/timing/model"
)

// ErrUnknownRecord marks a record prefix the parser does not recognize.
var ErrUnknownRecord = errors.New("rmonitor: unknown record type")

// ErrShortRecord marks a recognized record with too few fields.
var ErrShortRecord = errors.New("rmonitor: record too short")

// ParseBatch parses a newline-delimited buffer in arrival order. Unparseable
// lines are logged at warn and skipped; the batch never fails as a whole.
func ParseBatch(data string) []Record {
	logger := log.WithComponent("rmonitor")
	var out []Record
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			metrics.IncParseError("rmonitor", prefixOf(line))
			logger.Warn().Err(err).Str(log.FieldRecord, line).Msg("skipping unparseable record")
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ParseLine parses a single record. Malformed numeric fields inside a
// recognized record default to zero rather than failing the record.
func ParseLine(line string) (Record, error) {
	fields := splitFields(line)
	if len(fields) == 0 {
		return nil, ErrShortRecord
	}
	switch fields[0] {
	case "$F":
		return parseHeartbeat(fields)
	case "$A":
		return parseRegistration(fields)
	case "$COMP":
		return parseCompetitor(fields)
	case "$B":
		return parseRunInfo(fields)
	case "$C":
		return parseClassInfo(fields)
	case "$E":
		return parseSetting(fields)
	case "$G":
		return parseRaceInfo(fields)
	case "$H":
		return parsePracticeBest(fields)
	case "$I":
		return parseReset(fields)
	case "$J":
		return parsePassing(fields)
	case "$COR":
		return parseCorrectedFinish(fields)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, fields[0])
	}
}

// ContainsRebuild reports whether a parsed batch holds the full reset rebuild:
// a $I plus registrations, race info and practice/qualifying records.
func ContainsRebuild(records []Record) bool {
	var hasReset, hasCompetitor, hasRace, hasPractice bool
	for _, r := range records {
		switch r.(type) {
		case Reset:
			hasReset = true
		case Competitor:
			hasCompetitor = true
		case RaceInfo:
			hasRace = true
		case PracticeBest:
			hasPractice = true
		}
	}
	return hasReset && hasCompetitor && hasRace && hasPractice
}

func parseHeartbeat(f []string) (Record, error) {
	if len(f) < 6 {
		return nil, ErrShortRecord
	}
	return Heartbeat{
		LapsToGo:  atoi(f[1]),
		TimeToGo:  f[2],
		TimeOfDay: f[3],
		RaceTime:  f[4],
		Flag:      model.ParseFlag(f[5]),
	}, nil
}

func parseRegistration(f []string) (Record, error) {
	if len(f) < 8 {
		return nil, ErrShortRecord
	}
	return Competitor{
		RegNo:       f[1],
		Number:      f[2],
		Transponder: uint32(atoi(f[3])),
		FirstName:   f[4],
		LastName:    f[5],
		Nationality: f[6],
		ClassNumber: atoi(f[7]),
	}, nil
}

func parseCompetitor(f []string) (Record, error) {
	if len(f) < 8 {
		return nil, ErrShortRecord
	}
	return Competitor{
		RegNo:       f[1],
		Number:      f[2],
		ClassNumber: atoi(f[3]),
		FirstName:   f[4],
		LastName:    f[5],
		Nationality: f[6],
		Team:        f[7],
	}, nil
}

func parseRunInfo(f []string) (Record, error) {
	if len(f) < 3 {
		return nil, ErrShortRecord
	}
	return RunInfo{Reference: atoi(f[1]), Name: f[2]}, nil
}

func parseClassInfo(f []string) (Record, error) {
	if len(f) < 3 {
		return nil, ErrShortRecord
	}
	return ClassInfo{Number: atoi(f[1]), Name: f[2]}, nil
}

func parseSetting(f []string) (Record, error) {
	if len(f) < 3 {
		return nil, ErrShortRecord
	}
	return Setting{Key: f[1], Value: f[2]}, nil
}

func parseRaceInfo(f []string) (Record, error) {
	if len(f) < 5 {
		return nil, ErrShortRecord
	}
	return RaceInfo{
		Position:  atoi(f[1]),
		Number:    f[2],
		Laps:      atoi(f[3]),
		TotalTime: f[4],
	}, nil
}

func parsePracticeBest(f []string) (Record, error) {
	if len(f) < 5 {
		return nil, ErrShortRecord
	}
	return PracticeBest{
		Position: atoi(f[1]),
		Number:   f[2],
		BestLap:  atoi(f[3]),
		BestTime: f[4],
	}, nil
}

func parseReset(f []string) (Record, error) {
	r := Reset{}
	if len(f) > 1 {
		r.TimeOfDay = f[1]
	}
	if len(f) > 2 {
		r.Date = f[2]
	}
	return r, nil
}

func parsePassing(f []string) (Record, error) {
	if len(f) < 4 {
		return nil, ErrShortRecord
	}
	return Passing{Number: f[1], LapTime: f[2], RaceTime: f[3]}, nil
}

func parseCorrectedFinish(f []string) (Record, error) {
	if len(f) < 6 {
		return nil, ErrShortRecord
	}
	return CorrectedFinish{
		RegNo:         f[1],
		Number:        f[2],
		Laps:          atoi(f[3]),
		TotalTime:     f[4],
		CorrectedTime: f[5],
	}, nil
}

// splitFields splits a record on commas, honoring double-quoted fields and
// stripping the quotes.
func splitFields(line string) []string {
	var fields []string
	var sb strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(ch)
		}
	}
	fields = append(fields, sb.String())
	return fields
}

// atoi parses a decimal field, defaulting to 0 on malformed input per the
// protocol's error policy.
func atoi(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

func prefixOf(line string) string {
	if i := strings.IndexByte(line, ','); i > 0 {
		return line[:i]
	}
	if len(line) > 8 {
		return line[:8]
	}
	return line
}
