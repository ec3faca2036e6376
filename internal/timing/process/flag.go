package process

import (
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/session"
)

// FlagProcessor maintains the session's flag-duration history from the
// current flag observed on heartbeats.
type FlagProcessor struct{}

// Process closes the open duration and opens a new one when the flag has
// changed. Consecutive equal flags leave the open duration untouched, so the
// history never holds two adjacent entries with the same flag and always has
// exactly one open entry once a flag has been seen.
func (FlagProcessor) Process(c *session.Context) {
	s := c.State
	flag := s.CurrentFlag
	now := c.Clock.Now()

	open := s.OpenFlag()
	if open == nil {
		if flag == model.FlagUnknown {
			return
		}
		s.FlagDurations = append(s.FlagDurations, model.FlagDuration{Flag: flag, Start: now})
		return
	}
	if open.Flag == flag {
		return
	}
	end := now
	open.End = &end
	s.FlagDurations = append(s.FlagDurations, model.FlagDuration{Flag: flag, Start: now})
}
