package model

import (
	"sort"
	"time"
)

// EventEntry is the registration record for a car. Created on the first
// competitor message and overwritten on duplicates of the same number.
type EventEntry struct {
	Number      string `json:"number"`
	DriverName  string `json:"driverName"`
	Team        string `json:"team,omitempty"`
	Class       string `json:"class,omitempty"`
	ClassNumber int    `json:"classNumber,omitempty"`
}

// StartingPosition is a car's captured grid rank.
type StartingPosition struct {
	Overall int    `json:"overall"`
	InClass int    `json:"inClass"`
	Class   string `json:"class,omitempty"`
}

// Announcement is one multiloop announcement record, retained for the debug
// surface.
type Announcement struct {
	Sequence int    `json:"sequence"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
	Text     string `json:"text"`
}

// AnnouncementRingSize bounds retained announcements per session.
const AnnouncementRingSize = 16

// SessionState is the authoritative view of one session. It is owned by the
// session worker; everything else sees snapshot copies.
type SessionState struct {
	EventID              int    `json:"eventId"`
	SessionID            int    `json:"sessionId"`
	SessionName          string `json:"sessionName"`
	IsPracticeQualifying bool   `json:"isPracticeQualifying"`
	IsLive               bool   `json:"isLive"`

	StartTime           time.Time  `json:"startTime"`
	EndTime             *time.Time `json:"endTime,omitempty"`
	LastUpdated         time.Time  `json:"lastUpdated"`
	LocalTimeZoneOffset float64    `json:"localTimeZoneOffset,omitempty"`

	CurrentFlag Flag `json:"currentFlag"`

	LapsToGo        int    `json:"lapsToGo"`
	TimeToGo        string `json:"timeToGo"`
	RunningRaceTime string `json:"runningRaceTime"`
	LocalTimeOfDay  string `json:"localTimeOfDay"`
	// RaceTime is RunningRaceTime parsed for arithmetic; NoTime when absent.
	RaceTime time.Duration `json:"-"`

	TrackName   string `json:"trackName,omitempty"`
	TrackLength string `json:"trackLength,omitempty"`

	FlagDurations []FlagDuration `json:"flagDurations"`
	FlagStats     FlagStats      `json:"flagStats"`

	Cars    map[string]*CarPosition `json:"cars"`
	Entries map[string]*EventEntry  `json:"entries"`
	Classes map[int]string          `json:"classes"`

	StartingPositions         map[string]StartingPosition `json:"startingPositions"`
	StartingPositionsCaptured bool                        `json:"startingPositionsCaptured"`

	Announcements []Announcement `json:"announcements,omitempty"`

	// Consistency is false once a position-consistency violation has been
	// detected; the violating state is left visible rather than repaired.
	Consistency bool `json:"consistency"`
}

// NewSessionState returns an empty live session.
func NewSessionState(eventID, sessionID int) *SessionState {
	return &SessionState{
		EventID:           eventID,
		SessionID:         sessionID,
		IsLive:            true,
		CurrentFlag:       FlagUnknown,
		RaceTime:          NoTime,
		Cars:              make(map[string]*CarPosition),
		Entries:           make(map[string]*EventEntry),
		Classes:           make(map[int]string),
		StartingPositions: make(map[string]StartingPosition),
		Consistency:       true,
	}
}

// Car returns the car for number, creating it on first mention.
func (s *SessionState) Car(number string) *CarPosition {
	if number == "" {
		return nil
	}
	if c, ok := s.Cars[number]; ok {
		return c
	}
	c := NewCarPosition(number)
	s.Cars[number] = c
	return c
}

// CarByTransponder finds a car by transponder id.
func (s *SessionState) CarByTransponder(id uint32) *CarPosition {
	if id == 0 {
		return nil
	}
	for _, c := range s.Cars {
		if c.TransponderID == id {
			return c
		}
	}
	return nil
}

// RaceHasStarted reports whether any car has completed a lap.
func (s *SessionState) RaceHasStarted() bool {
	for _, c := range s.Cars {
		if c.LastLapCompleted >= 1 {
			return true
		}
	}
	return false
}

// OrderedCars returns the cars sorted by overall position, unknown (0) last,
// ties broken by number for determinism.
func (s *SessionState) OrderedCars() []*CarPosition {
	cars := make([]*CarPosition, 0, len(s.Cars))
	for _, c := range s.Cars {
		cars = append(cars, c)
	}
	sort.Slice(cars, func(i, j int) bool {
		pi, pj := cars[i].OverallPosition, cars[j].OverallPosition
		if pi == pj {
			return cars[i].Number < cars[j].Number
		}
		if pi == 0 {
			return false
		}
		if pj == 0 {
			return true
		}
		return pi < pj
	})
	return cars
}

// ClassName resolves a class number to its registered name, falling back to
// the empty string.
func (s *SessionState) ClassName(classNumber int) string {
	return s.Classes[classNumber]
}

// AddAnnouncement appends to the bounded announcement ring.
func (s *SessionState) AddAnnouncement(a Announcement) {
	s.Announcements = append(s.Announcements, a)
	if len(s.Announcements) > AnnouncementRingSize {
		s.Announcements = s.Announcements[len(s.Announcements)-AnnouncementRingSize:]
	}
}

// OpenFlag returns the currently open flag duration, or nil before the first
// heartbeat.
func (s *SessionState) OpenFlag() *FlagDuration {
	for i := range s.FlagDurations {
		if s.FlagDurations[i].End == nil {
			return &s.FlagDurations[i]
		}
	}
	return nil
}

// Snapshot returns a deep copy safe for readers outside the session worker.
func (s *SessionState) Snapshot() *SessionState {
	cp := *s
	cp.Cars = make(map[string]*CarPosition, len(s.Cars))
	for n, c := range s.Cars {
		cp.Cars[n] = c.Clone()
	}
	cp.Entries = make(map[string]*EventEntry, len(s.Entries))
	for n, e := range s.Entries {
		ec := *e
		cp.Entries[n] = &ec
	}
	cp.Classes = make(map[int]string, len(s.Classes))
	for k, v := range s.Classes {
		cp.Classes[k] = v
	}
	cp.StartingPositions = make(map[string]StartingPosition, len(s.StartingPositions))
	for k, v := range s.StartingPositions {
		cp.StartingPositions[k] = v
	}
	cp.FlagDurations = make([]FlagDuration, len(s.FlagDurations))
	copy(cp.FlagDurations, s.FlagDurations)
	for i := range cp.FlagDurations {
		if s.FlagDurations[i].End != nil {
			end := *s.FlagDurations[i].End
			cp.FlagDurations[i].End = &end
		}
	}
	cp.Announcements = append([]Announcement(nil), s.Announcements...)
	if s.EndTime != nil {
		end := *s.EndTime
		cp.EndTime = &end
	}
	return &cp
}
