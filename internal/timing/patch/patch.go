// Package patch defines the sparse update objects published to the transport
// and the diff logic that produces them. A nil field means "unchanged"; the
// zero patch is the neutral element and is never emitted.
package patch

import (
	"time"

	"github.com/gridpulse/gridpulse/internal/timing/model"
)

// SessionPatch carries the changed session-level fields for one tick. EventID
// and SessionID are always present.
type SessionPatch struct {
	EventID   int `json:"eventId"`
	SessionID int `json:"sessionId"`

	SessionName          *string     `json:"sessionName,omitempty"`
	IsPracticeQualifying *bool       `json:"isPracticeQualifying,omitempty"`
	IsLive               *bool       `json:"isLive,omitempty"`
	EndTime              *time.Time  `json:"endTime,omitempty"`
	CurrentFlag          *model.Flag `json:"currentFlag,omitempty"`

	LapsToGo        *int    `json:"lapsToGo,omitempty"`
	TimeToGo        *string `json:"timeToGo,omitempty"`
	RunningRaceTime *string `json:"runningRaceTime,omitempty"`
	LocalTimeOfDay  *string `json:"localTimeOfDay,omitempty"`

	TrackName   *string `json:"trackName,omitempty"`
	TrackLength *string `json:"trackLength,omitempty"`

	FlagDurations []model.FlagDuration `json:"flagDurations,omitempty"`
	FlagStats     *model.FlagStats     `json:"flagStats,omitempty"`

	StartingPositionsCaptured *bool `json:"startingPositionsCaptured,omitempty"`
	Consistency               *bool `json:"consistency,omitempty"`

	// CarsRemoved lists car numbers deleted from the session (reset).
	CarsRemoved []string `json:"carsRemoved,omitempty"`
}

// IsZero reports whether the patch carries no changes.
func (p *SessionPatch) IsZero() bool {
	if p == nil {
		return true
	}
	return p.SessionName == nil && p.IsPracticeQualifying == nil && p.IsLive == nil &&
		p.EndTime == nil && p.CurrentFlag == nil && p.LapsToGo == nil &&
		p.TimeToGo == nil && p.RunningRaceTime == nil && p.LocalTimeOfDay == nil &&
		p.TrackName == nil && p.TrackLength == nil && p.FlagDurations == nil &&
		p.FlagStats == nil && p.StartingPositionsCaptured == nil &&
		p.Consistency == nil && len(p.CarsRemoved) == 0
}

// CarPatch carries the changed fields for one car. Number is always present.
// Time fields travel as formatted strings; the empty string clears the value.
type CarPatch struct {
	Number string `json:"number"`

	Class         *string `json:"class,omitempty"`
	TransponderID *uint32 `json:"transponderId,omitempty"`
	DriverName    *string `json:"driverName,omitempty"`

	OverallPosition *int `json:"overallPosition,omitempty"`
	ClassPosition   *int `json:"classPosition,omitempty"`

	OverallStartingPosition *int `json:"overallStartingPosition,omitempty"`
	InClassStartingPosition *int `json:"inClassStartingPosition,omitempty"`

	LastLapCompleted *int    `json:"lastLapCompleted,omitempty"`
	BestLap          *int    `json:"bestLap,omitempty"`
	BestLapTime      *string `json:"bestLapTime,omitempty"`
	LastLapTime      *string `json:"lastLapTime,omitempty"`
	TotalTime        *string `json:"totalTime,omitempty"`

	ProjectedLapTimeMS *int64  `json:"projectedLapTimeMs,omitempty"`
	LapStartTime       *string `json:"lapStartTime,omitempty"`

	OverallGap        *string `json:"overallGap,omitempty"`
	OverallDifference *string `json:"overallDifference,omitempty"`
	InClassGap        *string `json:"inClassGap,omitempty"`
	InClassDifference *string `json:"inClassDifference,omitempty"`

	OverallPositionsGained       *int  `json:"overallPositionsGained,omitempty"`
	InClassPositionsGained       *int  `json:"inClassPositionsGained,omitempty"`
	IsOverallMostPositionsGained *bool `json:"isOverallMostPositionsGained,omitempty"`
	IsClassMostPositionsGained   *bool `json:"isClassMostPositionsGained,omitempty"`

	IsBestTime      *bool `json:"isBestTime,omitempty"`
	IsBestTimeClass *bool `json:"isBestTimeClass,omitempty"`

	IsInPit          *bool `json:"isInPit,omitempty"`
	IsPitStartFinish *bool `json:"isPitStartFinish,omitempty"`
	IsEnteredPit     *bool `json:"isEnteredPit,omitempty"`
	IsExitedPit      *bool `json:"isExitedPit,omitempty"`
	LastLapPitted    *int  `json:"lastLapPitted,omitempty"`
	PitStopCount     *int  `json:"pitStopCount,omitempty"`

	IsStale   *bool       `json:"isStale,omitempty"`
	TrackFlag *model.Flag `json:"trackFlag,omitempty"`

	Video *model.VideoStatus `json:"video,omitempty"`

	// CompletedSections replaces the full section map when non-nil.
	CompletedSections *map[string]model.CompletedSection `json:"completedSections,omitempty"`

	LapsLed       *int    `json:"lapsLed,omitempty"`
	CurrentStatus *string `json:"currentStatus,omitempty"`

	Penalties *int `json:"penalties,omitempty"`
	Warnings  *int `json:"warnings,omitempty"`
}

// IsZero reports whether the patch carries no changes beyond the key.
func (p *CarPatch) IsZero() bool {
	if p == nil {
		return true
	}
	return p.Class == nil && p.TransponderID == nil && p.DriverName == nil &&
		p.OverallPosition == nil && p.ClassPosition == nil &&
		p.OverallStartingPosition == nil && p.InClassStartingPosition == nil &&
		p.LastLapCompleted == nil && p.BestLap == nil && p.BestLapTime == nil &&
		p.LastLapTime == nil && p.TotalTime == nil && p.ProjectedLapTimeMS == nil &&
		p.LapStartTime == nil && p.OverallGap == nil && p.OverallDifference == nil &&
		p.InClassGap == nil && p.InClassDifference == nil &&
		p.OverallPositionsGained == nil && p.InClassPositionsGained == nil &&
		p.IsOverallMostPositionsGained == nil && p.IsClassMostPositionsGained == nil &&
		p.IsBestTime == nil && p.IsBestTimeClass == nil && p.IsInPit == nil &&
		p.IsPitStartFinish == nil && p.IsEnteredPit == nil && p.IsExitedPit == nil &&
		p.LastLapPitted == nil && p.PitStopCount == nil && p.IsStale == nil &&
		p.TrackFlag == nil && p.Video == nil && p.CompletedSections == nil &&
		p.LapsLed == nil && p.CurrentStatus == nil && p.Penalties == nil &&
		p.Warnings == nil
}

// Update is the tuple handed to the transport for one tick.
type Update struct {
	Session *SessionPatch `json:"session,omitempty"`
	Cars    []CarPatch    `json:"cars,omitempty"`
}

// IsZero reports whether the update carries nothing.
func (u *Update) IsZero() bool {
	return u == nil || (u.Session.IsZero() && len(u.Cars) == 0)
}
