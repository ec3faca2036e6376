package session

import (
	"strings"

	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/multiloop"
)

// ApplyML applies a parsed multiloop batch in arrival order. The multiloop
// feed is richer than Result-Monitor but overlaps it; application is written
// so the two commute where they overlap.
func (c *Context) ApplyML(batch []multiloop.Record) {
	for _, rec := range batch {
		switch r := rec.(type) {
		case multiloop.Heartbeat:
			c.applyMLHeartbeat(r)
		case multiloop.Entry:
			c.applyMLEntry(r)
		case multiloop.CompletedLap:
			c.applyMLCompletedLap(r)
		case multiloop.CompletedSection:
			c.applyMLCompletedSection(r)
		case multiloop.LineCrossing:
			c.applyMLLineCrossing(r)
		case multiloop.FlagRecord:
			c.applyMLFlag(r)
		case multiloop.Run:
			c.applyMLRun(r)
		case multiloop.Track:
			c.State.TrackName = r.Name
			c.State.TrackLength = r.Distance
		case multiloop.Announcement:
			c.State.AddAnnouncement(model.Announcement{
				Sequence: r.Sequence,
				Action:   r.Action,
				Priority: r.Priority,
				Text:     r.Text,
			})
		case multiloop.Version:
			c.logger.Debug().Int("major", r.Major).Int("minor", r.Minor).Msg("multiloop protocol version")
		case multiloop.NewLeader:
			c.applyMLNewLeader(r)
		case multiloop.InvalidatedLap:
			if car, ok := c.State.Cars[r.Number]; ok {
				car.LastLapTime = model.NoTime
				delete(c.lastLapCache, r.Number)
			}
		}
	}
}

func (c *Context) applyMLHeartbeat(r multiloop.Heartbeat) {
	s := c.State
	s.CurrentFlag = r.Flag
	s.LapsToGo = r.LapsToGo
	if r.RaceTime >= 0 {
		s.RaceTime = r.RaceTime
		s.RunningRaceTime = model.FormatLapTime(r.RaceTime)
	}
}

func (c *Context) applyMLEntry(r multiloop.Entry) {
	if r.Number == "" {
		return
	}
	car := c.State.Car(r.Number)
	if r.DriverName != "" {
		car.DriverName = r.DriverName
	}
	if r.StartPosition >= 1 && !c.State.StartingPositionsCaptured {
		car.OverallStartingPosition = r.StartPosition
	}

	entry := c.State.Entries[r.Number]
	if entry == nil {
		entry = &model.EventEntry{Number: r.Number}
		c.State.Entries[r.Number] = entry
	}
	if r.DriverName != "" {
		entry.DriverName = r.DriverName
	}
}

func (c *Context) applyMLCompletedLap(r multiloop.CompletedLap) {
	if r.Number == "" {
		return
	}
	car := c.State.Car(r.Number)

	if r.Position >= 1 {
		car.OverallPosition = r.Position
	}
	if r.TotalTime > 0 {
		car.TotalTime = r.TotalTime
	}
	if r.CompletedLaps > car.LastLapCompleted {
		car.LastLapCompleted = r.CompletedLaps
		car.TrackFlag = c.State.CurrentFlag
		if car.TotalTime != model.NoTime {
			car.LapStartTime = car.TotalTime
		}
	}
	if r.LastLapTime > 0 {
		car.LastLapTime = r.LastLapTime
		c.cacheLastLap(r.Number, r.LastLapTime)
	}
	c.recordBest(car, r.CompletedLaps, r.BestLapTime)

	if r.PitStopCount > car.PitStopCount {
		car.PitStopCount = r.PitStopCount
	}
	if r.LastLapPitted > car.LastLapPitted {
		car.LastLapPitted = r.LastLapPitted
	}
	if r.StartPosition >= 1 && !c.State.StartingPositionsCaptured {
		car.OverallStartingPosition = r.StartPosition
	}
	if r.LapsLed > 0 {
		car.LapsLed = r.LapsLed
	}
	if s := strings.TrimSpace(r.CurrentStatus); s != "" {
		car.SetCurrentStatus(s)
	}
	car.TimeBehindLeader = r.TimeBehindLeader
	car.LapsBehindLeader = r.LapsBehindLeader
	car.TimeBehindPreceding = r.TimeBehindPreceding
	car.LapsBehindPreceding = r.LapsBehindPreceding

	// A completed lap supersedes the section records for the lap.
	car.CompletedSections = nil
	car.ProjectedLapTimeMS = 0
}

func (c *Context) applyMLCompletedSection(r multiloop.CompletedSection) {
	if r.Number == "" || r.SectionID == "" {
		return
	}
	car := c.State.Car(r.Number)
	if car.CompletedSections == nil {
		car.CompletedSections = make(map[string]model.CompletedSection)
	}
	car.CompletedSections[r.SectionID] = model.CompletedSection{
		SectionID:       r.SectionID,
		ElapsedTime:     r.ElapsedTime,
		LastSectionTime: r.LastSectionTime,
		LastLap:         r.LastLap,
	}
	c.projectLapTime(car)
}

// projectLapTime extrapolates the running lap from accumulated section times.
func (c *Context) projectLapTime(car *model.CarPosition) {
	if car.LastLapTime == model.NoTime || len(car.CompletedSections) == 0 {
		return
	}
	var sections int64
	for _, s := range car.CompletedSections {
		sections += s.LastSectionTime.Milliseconds()
	}
	last := car.LastLapTime.Milliseconds()
	if sections > last {
		car.ProjectedLapTimeMS = sections
	} else {
		car.ProjectedLapTimeMS = last
	}
}

func (c *Context) applyMLLineCrossing(r multiloop.LineCrossing) {
	if r.Number == "" {
		return
	}
	car := c.State.Car(r.Number)
	if flag := model.ParseFlag(r.TrackStatus); flag != model.FlagUnknown {
		car.TrackFlag = flag
	}
}

func (c *Context) applyMLFlag(r multiloop.FlagRecord) {
	s := c.State
	stats := model.FlagStats{
		GreenTimeMS:      r.GreenTimeMS,
		GreenLaps:        r.GreenLaps,
		YellowTimeMS:     r.YellowTimeMS,
		YellowLaps:       r.YellowLaps,
		NumberOfYellows:  r.NumberOfYellows,
		RedTimeMS:        r.RedTimeMS,
		CurrentLeader:    r.CurrentLeader,
		LeadChanges:      r.LeadChanges,
		AverageRaceSpeed: r.AverageRaceSpeed,
	}
	s.FlagStats = stats
	if r.TrackStatus != model.FlagUnknown {
		s.CurrentFlag = r.TrackStatus
	}
}

func (c *Context) applyMLRun(r multiloop.Run) {
	s := c.State
	if r.Name != "" && s.SessionName == "" {
		s.SessionName = r.Name
	}
	switch strings.ToLower(strings.TrimSpace(r.RunType)) {
	case "practice", "qualifying", "qualify":
		s.IsPracticeQualifying = true
	case "race":
		s.IsPracticeQualifying = false
	}
}

func (c *Context) applyMLNewLeader(r multiloop.NewLeader) {
	s := c.State
	if r.Number == "" {
		return
	}
	if s.FlagStats.CurrentLeader != r.Number {
		s.FlagStats.CurrentLeader = r.Number
		s.FlagStats.LeadChanges++
	}
}
