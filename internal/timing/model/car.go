package model

import "time"

// CurrentStatusMaxLen bounds the free-text car status carried on patches.
const CurrentStatusMaxLen = 12

// VideoStatus is in-car video metadata attached to a car when available.
type VideoStatus struct {
	SystemType  string `json:"systemType"`
	Destination string `json:"destination"`
}

// CompletedSection is one per-car per-section record from the multiloop feed.
// Entries are cleared when the next completed-lap record for the car arrives.
type CompletedSection struct {
	SectionID       string        `json:"sectionId"`
	ElapsedTime     time.Duration `json:"elapsedTime"`
	LastSectionTime time.Duration `json:"lastSectionTime"`
	LastLap         int           `json:"lastLap"`
}

// CarPosition is the live per-car state within a session. The car number is
// the primary key; position 0 means unknown.
type CarPosition struct {
	Number        string `json:"number"`
	RegNo         string `json:"regNo,omitempty"`
	Class         string `json:"class,omitempty"`
	ClassNumber   int    `json:"classNumber,omitempty"`
	TransponderID uint32 `json:"transponderId,omitempty"`
	DriverName    string `json:"driverName,omitempty"`

	OverallPosition int `json:"overallPosition"`
	ClassPosition   int `json:"classPosition"`

	OverallStartingPosition int `json:"overallStartingPosition"`
	InClassStartingPosition int `json:"inClassStartingPosition"`

	LastLapCompleted int           `json:"lastLapCompleted"`
	BestLap          int           `json:"bestLap"`
	BestLapTime      time.Duration `json:"bestLapTime"`
	LastLapTime      time.Duration `json:"lastLapTime"`
	TotalTime        time.Duration `json:"totalTime"`

	// ProjectedLapTimeMS extrapolates the running lap from completed sections.
	ProjectedLapTimeMS int64 `json:"projectedLapTimeMs,omitempty"`
	// LapStartTime is the race time at which the current lap began.
	LapStartTime time.Duration `json:"lapStartTime"`

	OverallGap        string `json:"overallGap"`
	OverallDifference string `json:"overallDifference"`
	InClassGap        string `json:"inClassGap"`
	InClassDifference string `json:"inClassDifference"`

	OverallPositionsGained       int  `json:"overallPositionsGained"`
	InClassPositionsGained       int  `json:"inClassPositionsGained"`
	IsOverallMostPositionsGained bool `json:"isOverallMostPositionsGained"`
	IsClassMostPositionsGained   bool `json:"isClassMostPositionsGained"`

	IsBestTime      bool `json:"isBestTime"`
	IsBestTimeClass bool `json:"isBestTimeClass"`
	// BestTimeOrder sequences best-lap achievements for tie-breaking.
	BestTimeOrder int `json:"-"`

	IsInPit          bool `json:"isInPit"`
	IsPitStartFinish bool `json:"isPitStartFinish"`
	IsEnteredPit     bool `json:"isEnteredPit"`
	IsExitedPit      bool `json:"isExitedPit"`
	LastLapPitted    int  `json:"lastLapPitted"`
	PitStopCount     int  `json:"pitStopCount"`
	PittedCurrentLap bool `json:"-"`

	IsStale bool `json:"isStale"`

	// TrackFlag is the session flag at the car's most recent completed lap.
	TrackFlag Flag `json:"trackFlag"`

	Video *VideoStatus `json:"video,omitempty"`

	CompletedSections map[string]CompletedSection `json:"completedSections,omitempty"`

	LapsLed       int    `json:"lapsLed"`
	CurrentStatus string `json:"currentStatus,omitempty"`

	TimeBehindLeader    time.Duration `json:"timeBehindLeader,omitempty"`
	LapsBehindLeader    int           `json:"lapsBehindLeader,omitempty"`
	TimeBehindPreceding time.Duration `json:"timeBehindPreceding,omitempty"`
	LapsBehindPreceding int           `json:"lapsBehindPreceding,omitempty"`

	Penalties int `json:"penalties,omitempty"`
	Warnings  int `json:"warnings,omitempty"`
}

// NewCarPosition returns a car with times unset.
func NewCarPosition(number string) *CarPosition {
	return &CarPosition{
		Number:      number,
		BestLapTime: NoTime,
		LastLapTime: NoTime,
		TotalTime:   NoTime,
		TrackFlag:   FlagUnknown,
	}
}

// SetCurrentStatus assigns the free-text status, truncated to the wire limit.
func (c *CarPosition) SetCurrentStatus(s string) {
	if len(s) > CurrentStatusMaxLen {
		s = s[:CurrentStatusMaxLen]
	}
	c.CurrentStatus = s
}

// Clone returns a deep copy of the car.
func (c *CarPosition) Clone() *CarPosition {
	cp := *c
	if c.Video != nil {
		v := *c.Video
		cp.Video = &v
	}
	if c.CompletedSections != nil {
		cp.CompletedSections = make(map[string]CompletedSection, len(c.CompletedSections))
		for k, v := range c.CompletedSections {
			cp.CompletedSections[k] = v
		}
	}
	return &cp
}
