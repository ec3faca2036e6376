package model

import (
	"strings"
	"time"
)

// Flag is the session or per-car track status.
type Flag string

const (
	FlagUnknown   Flag = "Unknown"
	FlagGreen     Flag = "Green"
	FlagYellow    Flag = "Yellow"
	FlagRed       Flag = "Red"
	FlagWhite     Flag = "White"
	FlagCheckered Flag = "Checkered"
)

// ParseFlag maps wire flag text to a Flag. Unrecognized values map to
// FlagUnknown rather than failing.
func ParseFlag(s string) Flag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "green":
		return FlagGreen
	case "yellow", "caution":
		return FlagYellow
	case "red":
		return FlagRed
	case "white":
		return FlagWhite
	case "checkered", "chequered", "finish", "finished":
		return FlagCheckered
	default:
		return FlagUnknown
	}
}

// FlagDuration is one interval of the session's flag history. End is nil for
// the currently open interval.
type FlagDuration struct {
	Flag  Flag       `json:"flag"`
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// FlagStats is the multiloop flag-record snapshot kept on the session. It is
// independent from the flag-duration history.
type FlagStats struct {
	GreenTimeMS      int64   `json:"greenTimeMs"`
	GreenLaps        int     `json:"greenLaps"`
	YellowTimeMS     int64   `json:"yellowTimeMs"`
	YellowLaps       int     `json:"yellowLaps"`
	NumberOfYellows  int     `json:"numberOfYellows"`
	RedTimeMS        int64   `json:"redTimeMs"`
	CurrentLeader    string  `json:"currentLeader"`
	LeadChanges      int     `json:"leadChanges"`
	AverageRaceSpeed float64 `json:"averageRaceSpeed"`
}
