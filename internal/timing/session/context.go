// Package session holds the per-session authoritative state and the rules for
// applying parsed wire records to it. A Context is owned by exactly one
// pipeline worker; nothing else mutates it.
package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gridpulse/gridpulse/internal/clock"
	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/x2"
)

// Context owns the SessionState for one session plus the bookkeeping that
// survives resets: the last-lap-time cache and the best-lap ordering sequence.
type Context struct {
	State *model.SessionState

	Clock  clock.Clock
	logger zerolog.Logger

	// lastLapCache remembers each car's most recent lap time so a mid-race
	// reset does not blank every car's last lap for a full lap.
	lastLapCache map[string]time.Duration

	// bestOrderSeq sequences best-lap achievements for tie-breaking.
	bestOrderSeq int

	// lastMessageAt drives quiet-period finalization.
	lastMessageAt time.Time
}

// New creates a context with a fresh live session.
func New(eventID, sessionID int, clk clock.Clock) *Context {
	if clk == nil {
		clk = clock.System{}
	}
	state := model.NewSessionState(eventID, sessionID)
	state.StartTime = clk.Now()
	return &Context{
		State:         state,
		Clock:         clk,
		logger:        log.WithSession("session", eventID, sessionID),
		lastLapCache:  make(map[string]time.Duration),
		lastMessageAt: clk.Now(),
	}
}

// Touch records inbound activity for the quiet-period timer.
func (c *Context) Touch() {
	c.lastMessageAt = c.Clock.Now()
	c.State.LastUpdated = c.lastMessageAt
}

// LastMessageAt returns the time of the most recent inbound message.
func (c *Context) LastMessageAt() time.Time {
	return c.lastMessageAt
}

// Finalize seals the session.
func (c *Context) Finalize() {
	now := c.Clock.Now()
	c.State.IsLive = false
	c.State.EndTime = &now
	if open := c.State.OpenFlag(); open != nil {
		open.End = &now
	}
}

// ApplyVideo attaches in-car video metadata, matching by car number first and
// transponder second.
func (c *Context) ApplyVideo(v *x2.Video) {
	if v == nil {
		return
	}
	car := c.State.Cars[v.CarNumber]
	if car == nil {
		car = c.State.CarByTransponder(v.TransponderID)
	}
	if car == nil {
		c.logger.Warn().Str(log.FieldCarNumber, v.CarNumber).
			Uint32("transponder", v.TransponderID).
			Msg("video metadata for unknown car")
		return
	}
	status := &model.VideoStatus{SystemType: v.SystemType}
	if len(v.Destinations) > 0 {
		status.Destination = v.Destinations[0].URL
	}
	car.Video = status
}

// CheckConsistency verifies that the overall positions of placed cars form a
// strict 1..N sequence once the race has started. A violation is recorded and
// surfaced via the Consistency field; the state is not mutated to hide it.
func (c *Context) CheckConsistency() {
	if !c.State.RaceHasStarted() {
		return
	}
	seen := make(map[int]string)
	max := 0
	placed := 0
	ok := true
	for _, car := range c.State.Cars {
		p := car.OverallPosition
		if p < 1 {
			continue
		}
		if prev, dup := seen[p]; dup {
			c.logger.Error().
				Int("position", p).
				Str("car_a", prev).
				Str("car_b", car.Number).
				Msg("duplicate overall position")
			ok = false
		}
		seen[p] = car.Number
		if p > max {
			max = p
		}
		placed++
	}
	if ok && placed > 0 && max != placed {
		c.logger.Error().
			Int("placed", placed).
			Int("max_position", max).
			Msg("overall positions have gaps")
		ok = false
	}
	if !ok {
		metrics.ConsistencyViolationsTotal.Inc()
		c.State.Consistency = false
	}
}

// cacheLastLap remembers the car's lap time for reset recovery.
func (c *Context) cacheLastLap(number string, t time.Duration) {
	if t > 0 {
		c.lastLapCache[number] = t
	}
}

// recordBest folds a candidate lap time into the car's best, stamping the
// achievement order for tie-breaks.
func (c *Context) recordBest(car *model.CarPosition, lap int, t time.Duration) {
	if t <= 0 {
		return
	}
	if car.BestLapTime == model.NoTime || t < car.BestLapTime {
		car.BestLapTime = t
		if lap > 0 {
			car.BestLap = lap
		}
		c.bestOrderSeq++
		car.BestTimeOrder = c.bestOrderSeq
	}
}
