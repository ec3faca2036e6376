package session

import (
	"github.com/gridpulse/gridpulse/internal/timing/model"
)

// applyReset handles a $I record or an external reset request. The reset
// shape matters: a standalone mid-race reset with no rebuild in the same
// buffer would present an empty grid until the next full update, so it is
// ignored; upstream re-sends a full rebuild when it means it.
func (c *Context) applyReset(multiRecord bool) bool {
	s := c.State
	preRace := s.CurrentFlag == model.FlagUnknown

	if preRace {
		c.clearAll()
		c.logger.Info().Bool("multi_record", multiRecord).Msg("pre-race reset: cleared session state")
		return true
	}

	if !multiRecord {
		c.logger.Warn().Msg("ignoring standalone mid-race reset")
		return false
	}

	c.clearForRebuild()
	c.logger.Info().Msg("mid-race reset: cleared volatile state, awaiting rebuild")
	return true
}

// ApplyResetRequest handles the external reset-request feed. It follows the
// standalone shape: honored pre-race, ignored mid-race.
func (c *Context) ApplyResetRequest() bool {
	return c.applyReset(false)
}

// clearAll discards competitors, race info, practice/qualifying data,
// passings, classes and starting-position capture. Flag history is preserved.
func (c *Context) clearAll() {
	s := c.State
	s.Cars = make(map[string]*model.CarPosition)
	s.Entries = make(map[string]*model.EventEntry)
	s.Classes = make(map[int]string)
	s.StartingPositions = make(map[string]model.StartingPosition)
	s.StartingPositionsCaptured = false
}

// clearForRebuild clears the per-car state a mid-race rebuild re-sends while
// keeping classes, flag history, starting positions and lap progress. Lap
// counters and totals are kept so car laps never run backwards; the rebuild
// overwrites them in the same batch.
func (c *Context) clearForRebuild() {
	s := c.State
	for _, car := range s.Cars {
		car.LastLapTime = model.NoTime
		car.BestLap = 0
		car.BestLapTime = model.NoTime
		car.BestTimeOrder = 0
		car.OverallGap = ""
		car.OverallDifference = ""
		car.InClassGap = ""
		car.InClassDifference = ""
	}
	s.Entries = make(map[string]*model.EventEntry)
}
