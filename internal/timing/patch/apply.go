package patch

import (
	"time"

	"github.com/gridpulse/gridpulse/internal/timing/model"
)

// Apply folds the patch into s. Applying every published patch in order to a
// fresh SessionState reproduces the publisher's view field by field.
func (p *SessionPatch) Apply(s *model.SessionState) {
	if p == nil {
		return
	}
	s.EventID = p.EventID
	s.SessionID = p.SessionID
	if p.SessionName != nil {
		s.SessionName = *p.SessionName
	}
	if p.IsPracticeQualifying != nil {
		s.IsPracticeQualifying = *p.IsPracticeQualifying
	}
	if p.IsLive != nil {
		s.IsLive = *p.IsLive
	}
	if p.EndTime != nil {
		end := *p.EndTime
		s.EndTime = &end
	}
	if p.CurrentFlag != nil {
		s.CurrentFlag = *p.CurrentFlag
	}
	if p.LapsToGo != nil {
		s.LapsToGo = *p.LapsToGo
	}
	if p.TimeToGo != nil {
		s.TimeToGo = *p.TimeToGo
	}
	if p.RunningRaceTime != nil {
		s.RunningRaceTime = *p.RunningRaceTime
		if d, ok := model.ParseRaceTime(*p.RunningRaceTime); ok {
			s.RaceTime = d
		} else {
			s.RaceTime = model.NoTime
		}
	}
	if p.LocalTimeOfDay != nil {
		s.LocalTimeOfDay = *p.LocalTimeOfDay
	}
	if p.TrackName != nil {
		s.TrackName = *p.TrackName
	}
	if p.TrackLength != nil {
		s.TrackLength = *p.TrackLength
	}
	if p.FlagDurations != nil {
		s.FlagDurations = append([]model.FlagDuration(nil), p.FlagDurations...)
	}
	if p.FlagStats != nil {
		s.FlagStats = *p.FlagStats
	}
	if p.StartingPositionsCaptured != nil {
		s.StartingPositionsCaptured = *p.StartingPositionsCaptured
	}
	if p.Consistency != nil {
		s.Consistency = *p.Consistency
	}
	for _, number := range p.CarsRemoved {
		delete(s.Cars, number)
	}
}

// Apply folds the patch into c.
func (p *CarPatch) Apply(c *model.CarPosition) {
	if p == nil {
		return
	}
	c.Number = p.Number
	if p.Class != nil {
		c.Class = *p.Class
	}
	if p.TransponderID != nil {
		c.TransponderID = *p.TransponderID
	}
	if p.DriverName != nil {
		c.DriverName = *p.DriverName
	}
	if p.OverallPosition != nil {
		c.OverallPosition = *p.OverallPosition
	}
	if p.ClassPosition != nil {
		c.ClassPosition = *p.ClassPosition
	}
	if p.OverallStartingPosition != nil {
		c.OverallStartingPosition = *p.OverallStartingPosition
	}
	if p.InClassStartingPosition != nil {
		c.InClassStartingPosition = *p.InClassStartingPosition
	}
	if p.LastLapCompleted != nil {
		c.LastLapCompleted = *p.LastLapCompleted
	}
	if p.BestLap != nil {
		c.BestLap = *p.BestLap
	}
	applyTime(p.BestLapTime, &c.BestLapTime)
	applyTime(p.LastLapTime, &c.LastLapTime)
	applyTime(p.TotalTime, &c.TotalTime)
	if p.ProjectedLapTimeMS != nil {
		c.ProjectedLapTimeMS = *p.ProjectedLapTimeMS
	}
	if p.LapStartTime != nil {
		if d, ok := model.ParseRaceTime(*p.LapStartTime); ok {
			c.LapStartTime = d
		} else {
			c.LapStartTime = 0
		}
	}
	if p.OverallGap != nil {
		c.OverallGap = *p.OverallGap
	}
	if p.OverallDifference != nil {
		c.OverallDifference = *p.OverallDifference
	}
	if p.InClassGap != nil {
		c.InClassGap = *p.InClassGap
	}
	if p.InClassDifference != nil {
		c.InClassDifference = *p.InClassDifference
	}
	if p.OverallPositionsGained != nil {
		c.OverallPositionsGained = *p.OverallPositionsGained
	}
	if p.InClassPositionsGained != nil {
		c.InClassPositionsGained = *p.InClassPositionsGained
	}
	if p.IsOverallMostPositionsGained != nil {
		c.IsOverallMostPositionsGained = *p.IsOverallMostPositionsGained
	}
	if p.IsClassMostPositionsGained != nil {
		c.IsClassMostPositionsGained = *p.IsClassMostPositionsGained
	}
	if p.IsBestTime != nil {
		c.IsBestTime = *p.IsBestTime
	}
	if p.IsBestTimeClass != nil {
		c.IsBestTimeClass = *p.IsBestTimeClass
	}
	if p.IsInPit != nil {
		c.IsInPit = *p.IsInPit
	}
	if p.IsPitStartFinish != nil {
		c.IsPitStartFinish = *p.IsPitStartFinish
	}
	if p.IsEnteredPit != nil {
		c.IsEnteredPit = *p.IsEnteredPit
	}
	if p.IsExitedPit != nil {
		c.IsExitedPit = *p.IsExitedPit
	}
	if p.LastLapPitted != nil {
		c.LastLapPitted = *p.LastLapPitted
	}
	if p.PitStopCount != nil {
		c.PitStopCount = *p.PitStopCount
	}
	if p.IsStale != nil {
		c.IsStale = *p.IsStale
	}
	if p.TrackFlag != nil {
		c.TrackFlag = *p.TrackFlag
	}
	if p.Video != nil {
		v := *p.Video
		c.Video = &v
	}
	if p.CompletedSections != nil {
		c.CompletedSections = make(map[string]model.CompletedSection, len(*p.CompletedSections))
		for k, v := range *p.CompletedSections {
			c.CompletedSections[k] = v
		}
	}
	if p.LapsLed != nil {
		c.LapsLed = *p.LapsLed
	}
	if p.CurrentStatus != nil {
		c.CurrentStatus = *p.CurrentStatus
	}
	if p.Penalties != nil {
		c.Penalties = *p.Penalties
	}
	if p.Warnings != nil {
		c.Warnings = *p.Warnings
	}
}

func applyTime(src *string, dst *time.Duration) {
	if src == nil {
		return
	}
	if *src == "" {
		*dst = model.NoTime
		return
	}
	if d, ok := model.ParseRaceTime(*src); ok {
		*dst = d
	}
}
