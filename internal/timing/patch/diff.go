package patch

import (
	"time"

	"github.com/gridpulse/gridpulse/internal/timing/model"
)

func set[T comparable](prev, next T, dst **T) {
	if prev != next {
		v := next
		*dst = &v
	}
}

func setTime(prev, next time.Duration, dst **string) {
	if prev != next {
		v := model.FormatLapTime(next)
		*dst = &v
	}
}

// DiffSession builds the sparse patch that turns prev into next. A nil prev
// is treated as a fresh session so that the first publication carries the
// full initial state. The returned patch is never nil; callers test IsZero.
func DiffSession(prev, next *model.SessionState) *SessionPatch {
	if prev == nil {
		prev = model.NewSessionState(next.EventID, next.SessionID)
	}
	p := &SessionPatch{EventID: next.EventID, SessionID: next.SessionID}

	set(prev.SessionName, next.SessionName, &p.SessionName)
	set(prev.IsPracticeQualifying, next.IsPracticeQualifying, &p.IsPracticeQualifying)
	set(prev.IsLive, next.IsLive, &p.IsLive)
	set(prev.CurrentFlag, next.CurrentFlag, &p.CurrentFlag)
	set(prev.LapsToGo, next.LapsToGo, &p.LapsToGo)
	set(prev.TimeToGo, next.TimeToGo, &p.TimeToGo)
	set(prev.RunningRaceTime, next.RunningRaceTime, &p.RunningRaceTime)
	set(prev.LocalTimeOfDay, next.LocalTimeOfDay, &p.LocalTimeOfDay)
	set(prev.TrackName, next.TrackName, &p.TrackName)
	set(prev.TrackLength, next.TrackLength, &p.TrackLength)
	set(prev.StartingPositionsCaptured, next.StartingPositionsCaptured, &p.StartingPositionsCaptured)
	set(prev.Consistency, next.Consistency, &p.Consistency)

	if next.EndTime != nil && (prev.EndTime == nil || !prev.EndTime.Equal(*next.EndTime)) {
		end := *next.EndTime
		p.EndTime = &end
	}
	if !flagDurationsEqual(prev.FlagDurations, next.FlagDurations) {
		p.FlagDurations = append([]model.FlagDuration(nil), next.FlagDurations...)
	}
	if prev.FlagStats != next.FlagStats {
		stats := next.FlagStats
		p.FlagStats = &stats
	}
	for number := range prev.Cars {
		if _, ok := next.Cars[number]; !ok {
			p.CarsRemoved = append(p.CarsRemoved, number)
		}
	}
	return p
}

// DiffCar builds the sparse patch that turns prev into next. A nil prev is
// treated as a fresh car.
func DiffCar(prev, next *model.CarPosition) *CarPatch {
	if prev == nil {
		prev = model.NewCarPosition(next.Number)
	}
	p := &CarPatch{Number: next.Number}

	set(prev.Class, next.Class, &p.Class)
	set(prev.TransponderID, next.TransponderID, &p.TransponderID)
	set(prev.DriverName, next.DriverName, &p.DriverName)
	set(prev.OverallPosition, next.OverallPosition, &p.OverallPosition)
	set(prev.ClassPosition, next.ClassPosition, &p.ClassPosition)
	set(prev.OverallStartingPosition, next.OverallStartingPosition, &p.OverallStartingPosition)
	set(prev.InClassStartingPosition, next.InClassStartingPosition, &p.InClassStartingPosition)
	set(prev.LastLapCompleted, next.LastLapCompleted, &p.LastLapCompleted)
	set(prev.BestLap, next.BestLap, &p.BestLap)
	setTime(prev.BestLapTime, next.BestLapTime, &p.BestLapTime)
	setTime(prev.LastLapTime, next.LastLapTime, &p.LastLapTime)
	setTime(prev.TotalTime, next.TotalTime, &p.TotalTime)
	set(prev.ProjectedLapTimeMS, next.ProjectedLapTimeMS, &p.ProjectedLapTimeMS)
	if prev.LapStartTime != next.LapStartTime {
		v := model.FormatLapTime(next.LapStartTime)
		p.LapStartTime = &v
	}
	set(prev.OverallGap, next.OverallGap, &p.OverallGap)
	set(prev.OverallDifference, next.OverallDifference, &p.OverallDifference)
	set(prev.InClassGap, next.InClassGap, &p.InClassGap)
	set(prev.InClassDifference, next.InClassDifference, &p.InClassDifference)
	set(prev.OverallPositionsGained, next.OverallPositionsGained, &p.OverallPositionsGained)
	set(prev.InClassPositionsGained, next.InClassPositionsGained, &p.InClassPositionsGained)
	set(prev.IsOverallMostPositionsGained, next.IsOverallMostPositionsGained, &p.IsOverallMostPositionsGained)
	set(prev.IsClassMostPositionsGained, next.IsClassMostPositionsGained, &p.IsClassMostPositionsGained)
	set(prev.IsBestTime, next.IsBestTime, &p.IsBestTime)
	set(prev.IsBestTimeClass, next.IsBestTimeClass, &p.IsBestTimeClass)
	set(prev.IsInPit, next.IsInPit, &p.IsInPit)
	set(prev.IsPitStartFinish, next.IsPitStartFinish, &p.IsPitStartFinish)
	set(prev.IsEnteredPit, next.IsEnteredPit, &p.IsEnteredPit)
	set(prev.IsExitedPit, next.IsExitedPit, &p.IsExitedPit)
	set(prev.LastLapPitted, next.LastLapPitted, &p.LastLapPitted)
	set(prev.PitStopCount, next.PitStopCount, &p.PitStopCount)
	set(prev.IsStale, next.IsStale, &p.IsStale)
	set(prev.TrackFlag, next.TrackFlag, &p.TrackFlag)
	set(prev.LapsLed, next.LapsLed, &p.LapsLed)
	set(prev.CurrentStatus, next.CurrentStatus, &p.CurrentStatus)
	set(prev.Penalties, next.Penalties, &p.Penalties)
	set(prev.Warnings, next.Warnings, &p.Warnings)

	if !videoEqual(prev.Video, next.Video) && next.Video != nil {
		v := *next.Video
		p.Video = &v
	}
	if !sectionsEqual(prev.CompletedSections, next.CompletedSections) {
		sections := make(map[string]model.CompletedSection, len(next.CompletedSections))
		for k, v := range next.CompletedSections {
			sections[k] = v
		}
		p.CompletedSections = &sections
	}
	return p
}

func flagDurationsEqual(a, b []model.FlagDuration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Flag != b[i].Flag || !a[i].Start.Equal(b[i].Start) {
			return false
		}
		ae, be := a[i].End, b[i].End
		if (ae == nil) != (be == nil) {
			return false
		}
		if ae != nil && !ae.Equal(*be) {
			return false
		}
	}
	return true
}

func videoEqual(a, b *model.VideoStatus) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sectionsEqual(a, b map[string]model.CompletedSection) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}
