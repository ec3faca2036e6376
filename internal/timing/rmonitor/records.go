// Package rmonitor parses the Result-Monitor wire protocol: newline-delimited
// comma-separated ASCII records prefixed "$X". Parsing is pure; records are
// applied to session state by the session context.
package rmonitor

import "github.com/gridpulse/gridpulse/internal/timing/model"

// Record is one parsed Result-Monitor record.
type Record interface {
	recordType() string
}

// Heartbeat is the $F record.
type Heartbeat struct {
	LapsToGo  int
	TimeToGo  string
	TimeOfDay string
	RaceTime  string
	Flag      model.Flag
}

// Competitor covers $A and $COMP registrations. Team is only present on $COMP.
type Competitor struct {
	RegNo       string
	Number      string
	Transponder uint32
	FirstName   string
	LastName    string
	Nationality string
	ClassNumber int
	Team        string
}

// RunInfo is the $B record. A change of Reference is a session change.
type RunInfo struct {
	Reference int
	Name      string
}

// ClassInfo is the $C record.
type ClassInfo struct {
	Number int
	Name   string
}

// Setting is the $E record. Recognized keys: TRACKNAME, TRACKLENGTH.
type Setting struct {
	Key   string
	Value string
}

// RaceInfo is the $G record.
type RaceInfo struct {
	Position  int
	Number    string
	Laps      int
	TotalTime string
}

// PracticeBest is the $H practice/qualifying record.
type PracticeBest struct {
	Position int
	Number   string
	BestLap  int
	BestTime string
}

// Passing is the $J record.
type Passing struct {
	Number   string
	LapTime  string
	RaceTime string
}

// Reset is the $I record.
type Reset struct {
	TimeOfDay string
	Date      string
}

// CorrectedFinish is the $COR record. It is consumed but produces no state
// change.
type CorrectedFinish struct {
	RegNo         string
	Number        string
	Laps          int
	TotalTime     string
	CorrectedTime string
}

func (Heartbeat) recordType() string       { return "$F" }
func (Competitor) recordType() string      { return "$A" }
func (RunInfo) recordType() string         { return "$B" }
func (ClassInfo) recordType() string       { return "$C" }
func (Setting) recordType() string         { return "$E" }
func (RaceInfo) recordType() string        { return "$G" }
func (PracticeBest) recordType() string    { return "$H" }
func (Passing) recordType() string         { return "$J" }
func (Reset) recordType() string           { return "$I" }
func (CorrectedFinish) recordType() string { return "$COR" }
