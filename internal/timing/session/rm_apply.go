package session

import (
	"strings"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/rmonitor"
)

// RMOutcome summarizes batch-level effects the pipeline cares about.
type RMOutcome struct {
	// SessionRefChanged is set when a $B record carried a different session
	// reference than the current one; the session monitor finalizes and
	// rotates the session in response.
	SessionRefChanged bool
	NewSessionRef     int
	NewSessionName    string

	// ResetApplied is set when a $I record actually cleared state.
	ResetApplied bool
}

// ApplyRM applies a parsed Result-Monitor batch in arrival order, handling
// the two reset shapes of the protocol. Multi-record resets are detected by
// the presence of the full rebuild in the same buffer.
func (c *Context) ApplyRM(batch []rmonitor.Record) RMOutcome {
	var out RMOutcome
	multiReset := rmonitor.ContainsRebuild(batch)
	midRaceReset := false
	rebuilt := make(map[string]bool)

	for _, rec := range batch {
		switch r := rec.(type) {
		case rmonitor.Heartbeat:
			c.applyHeartbeat(r)
		case rmonitor.Competitor:
			c.applyCompetitor(r)
			if midRaceReset {
				rebuilt[r.Number] = true
			}
		case rmonitor.RunInfo:
			c.applyRunInfo(r, &out)
		case rmonitor.ClassInfo:
			c.State.Classes[r.Number] = r.Name
			c.reresolveClass(r.Number)
		case rmonitor.Setting:
			c.applySetting(r)
		case rmonitor.RaceInfo:
			c.applyRaceInfo(r)
		case rmonitor.PracticeBest:
			c.applyPracticeBest(r)
		case rmonitor.Passing:
			c.applyPassing(r)
		case rmonitor.Reset:
			if c.applyReset(multiReset) {
				out.ResetApplied = true
				if c.State.CurrentFlag != model.FlagUnknown {
					midRaceReset = true
				}
			}
		case rmonitor.CorrectedFinish:
			// Consumed; produces no state change.
		}
	}

	if midRaceReset {
		c.restoreLastLapTimes(rebuilt)
	}
	return out
}

func (c *Context) applyHeartbeat(r rmonitor.Heartbeat) {
	s := c.State
	s.LapsToGo = r.LapsToGo
	s.TimeToGo = r.TimeToGo
	s.LocalTimeOfDay = r.TimeOfDay
	s.RunningRaceTime = r.RaceTime
	if d, ok := model.ParseRaceTime(r.RaceTime); ok {
		s.RaceTime = d
	} else {
		s.RaceTime = model.NoTime
	}
	s.CurrentFlag = r.Flag
}

func (c *Context) applyCompetitor(r rmonitor.Competitor) {
	if r.Number == "" {
		return
	}
	car := c.State.Car(r.Number)
	car.RegNo = r.RegNo
	if r.Transponder != 0 {
		car.TransponderID = r.Transponder
	}
	name := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if name != "" {
		car.DriverName = name
	}
	if r.ClassNumber != 0 {
		car.ClassNumber = r.ClassNumber
		car.Class = c.State.ClassName(r.ClassNumber)
	}

	entry := c.State.Entries[r.Number]
	if entry == nil {
		entry = &model.EventEntry{Number: r.Number}
		c.State.Entries[r.Number] = entry
	}
	if name != "" {
		entry.DriverName = name
	}
	if r.Team != "" {
		entry.Team = r.Team
	}
	if r.ClassNumber != 0 {
		entry.ClassNumber = r.ClassNumber
		entry.Class = c.State.ClassName(r.ClassNumber)
	}
}

// reresolveClass fills in class names on cars and entries registered before
// the $C record arrived.
func (c *Context) reresolveClass(classNumber int) {
	name := c.State.ClassName(classNumber)
	if name == "" {
		return
	}
	for _, car := range c.State.Cars {
		if car.ClassNumber == classNumber {
			car.Class = name
		}
	}
	for _, entry := range c.State.Entries {
		if entry.ClassNumber == classNumber {
			entry.Class = name
		}
	}
}

func (c *Context) applyRunInfo(r rmonitor.RunInfo, out *RMOutcome) {
	s := c.State
	if r.Reference != 0 && s.SessionID != 0 && r.Reference != s.SessionID {
		out.SessionRefChanged = true
		out.NewSessionRef = r.Reference
		out.NewSessionName = r.Name
		return
	}
	if r.Reference != 0 {
		s.SessionID = r.Reference
	}
	if r.Name != "" {
		s.SessionName = r.Name
	}
}

func (c *Context) applySetting(r rmonitor.Setting) {
	switch strings.ToUpper(strings.TrimSpace(r.Key)) {
	case "TRACKNAME":
		c.State.TrackName = r.Value
	case "TRACKLENGTH":
		c.State.TrackLength = r.Value
	}
}

func (c *Context) applyRaceInfo(r rmonitor.RaceInfo) {
	if r.Number == "" {
		return
	}
	s := c.State
	car := s.Car(r.Number)

	if r.Laps == 0 && !s.StartingPositionsCaptured && !s.RaceHasStarted() {
		c.captureStartingPosition(car, r.Position)
	}

	if r.Laps >= 1 && !s.StartingPositionsCaptured {
		c.latchStartingPositions()
	}

	if r.Position >= 1 {
		car.OverallPosition = r.Position
	}
	if total, ok := model.ParseRaceTime(r.TotalTime); ok {
		car.TotalTime = total
	}
	if r.Laps > car.LastLapCompleted {
		car.LastLapCompleted = r.Laps
		car.TrackFlag = s.CurrentFlag
		if car.TotalTime != model.NoTime {
			car.LapStartTime = car.TotalTime
		}
	}
}

func (c *Context) applyPracticeBest(r rmonitor.PracticeBest) {
	if r.Number == "" {
		return
	}
	car := c.State.Car(r.Number)
	if c.State.IsPracticeQualifying && r.Position >= 1 {
		car.OverallPosition = r.Position
	}
	if t, ok := model.ParseRaceTime(r.BestTime); ok && t > 0 {
		if car.BestLapTime == model.NoTime || t != car.BestLapTime {
			if car.BestLapTime == model.NoTime || t < car.BestLapTime {
				c.bestOrderSeq++
				car.BestTimeOrder = c.bestOrderSeq
			}
			car.BestLapTime = t
		}
		if r.BestLap > 0 {
			car.BestLap = r.BestLap
		}
	}
}

func (c *Context) applyPassing(r rmonitor.Passing) {
	if r.Number == "" {
		return
	}
	car := c.State.Car(r.Number)
	if t, ok := model.ParseRaceTime(r.LapTime); ok && t > 0 {
		car.LastLapTime = t
		c.cacheLastLap(r.Number, t)
		c.recordBest(car, car.LastLapCompleted, t)
	}
}

// restoreLastLapTimes reinstates cached lap times for cars that were
// re-registered by a mid-race rebuild. Cars omitted from the rebuild keep the
// cleared value.
func (c *Context) restoreLastLapTimes(rebuilt map[string]bool) {
	for number := range rebuilt {
		car, ok := c.State.Cars[number]
		if !ok {
			continue
		}
		if t, ok := c.lastLapCache[number]; ok && car.LastLapTime == model.NoTime {
			car.LastLapTime = t
		}
	}
	c.logger.Info().
		Int("restored", len(rebuilt)).
		Str(log.FieldBlock, "reset").
		Msg("restored last lap times after mid-race rebuild")
}
