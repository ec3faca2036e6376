// Package multiloop parses the multiloop wire protocol: records whose fields
// are delimited by 0x7F, prefixed "$X", with hex numeric fields unless noted.
package multiloop

import (
	"time"

	"github.com/gridpulse/gridpulse/internal/timing/model"
)

// Record is one parsed multiloop record.
type Record interface {
	recordType() string
}

// Heartbeat is the $H record.
type Heartbeat struct {
	TimeOfDay time.Duration
	RaceTime  time.Duration
	LapsToGo  int
	Flag      model.Flag
}

// Entry is the $E registration record.
type Entry struct {
	Number        string
	UniqueID      uint32
	DriverName    string
	StartPosition int
}

// CompletedLap is the $C record: accumulated per-lap statistics for one car.
type CompletedLap struct {
	Number              string
	UniqueID            uint32
	CompletedLaps       int
	LastLapTime         time.Duration
	TotalTime           time.Duration
	Position            int
	PitStopCount        int
	LastLapPitted       int
	StartPosition       int
	LapsLed             int
	CurrentStatus       string
	BestLapTime         time.Duration
	TimeBehindLeader    time.Duration
	LapsBehindLeader    int
	TimeBehindPreceding time.Duration
	LapsBehindPreceding int
}

// CompletedSection is the $S record.
type CompletedSection struct {
	Number          string
	UniqueID        uint32
	SectionID       string
	ElapsedTime     time.Duration
	LastSectionTime time.Duration
	LastLap         int
}

// LineCrossing is the $L record. Source is "T" (track) or "P" (pit).
type LineCrossing struct {
	Number         string
	UniqueID       uint32
	Timeline       string
	Source         string
	ElapsedTime    time.Duration
	TrackStatus    string
	CrossingStatus string
}

// FlagRecord is the $F record with accumulated flag metrics.
type FlagRecord struct {
	TrackStatus      model.Flag
	GreenTimeMS      int64
	GreenLaps        int
	YellowTimeMS     int64
	YellowLaps       int
	NumberOfYellows  int
	RedTimeMS        int64
	CurrentLeader    string
	LeadChanges      int
	AverageRaceSpeed float64
}

// Run is the $R record.
type Run struct {
	Name      string
	RunType   string
	StartTime time.Duration
}

// Track is the $T record.
type Track struct {
	Name      string
	ShortName string
	Distance  string
	Sections  []string
}

// Announcement is the $A record.
type Announcement struct {
	Sequence int
	Action   string
	Priority string
	Text     string
}

// Version is the $V record.
type Version struct {
	Major int
	Minor int
}

// NewLeader is the $N record.
type NewLeader struct {
	Number      string
	UniqueID    uint32
	Lap         int
	ElapsedTime time.Duration
}

// InvalidatedLap is the $I record; it blanks the car's last lap time.
type InvalidatedLap struct {
	Number   string
	UniqueID uint32
}

func (Heartbeat) recordType() string        { return "$H" }
func (Entry) recordType() string            { return "$E" }
func (CompletedLap) recordType() string     { return "$C" }
func (CompletedSection) recordType() string { return "$S" }
func (LineCrossing) recordType() string     { return "$L" }
func (FlagRecord) recordType() string       { return "$F" }
func (Run) recordType() string              { return "$R" }
func (Track) recordType() string            { return "$T" }
func (Announcement) recordType() string     { return "$A" }
func (Version) recordType() string          { return "$V" }
func (NewLeader) recordType() string        { return "$N" }
func (InvalidatedLap) recordType() string   { return "$I" }
