package process

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/patch"
	"github.com/gridpulse/gridpulse/internal/timing/session"
)

// Publisher ships one consolidated update downstream.
type Publisher interface {
	PublishUpdate(ctx context.Context, eventID, sessionID int, u *patch.Update) error
}

// Consolidator diffs the session state against the last published copy and
// emits the minimal update for the tick. Fields touched by several processors
// in the same tick collapse into a single patch entry.
type Consolidator struct {
	publisher Publisher
	logger    zerolog.Logger

	lastPublished *model.SessionState
}

// NewConsolidator creates a consolidator writing to publisher.
func NewConsolidator(publisher Publisher) *Consolidator {
	return &Consolidator{
		publisher: publisher,
		logger:    log.WithComponent("consolidate"),
	}
}

// Process publishes the tick's changes. On transport failure the update is
// dropped and the baseline kept, so the next tick re-emits the difference.
func (c *Consolidator) Process(ctx context.Context, sc *session.Context) {
	next := sc.State.Snapshot()

	u := &patch.Update{Session: patch.DiffSession(c.lastPublished, next)}

	numbers := make([]string, 0, len(next.Cars))
	for number := range next.Cars {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)
	for _, number := range numbers {
		var prev *model.CarPosition
		if c.lastPublished != nil {
			prev = c.lastPublished.Cars[number]
		}
		if cp := patch.DiffCar(prev, next.Cars[number]); !cp.IsZero() {
			u.Cars = append(u.Cars, *cp)
		}
	}
	if u.Session.IsZero() {
		u.Session = nil
	}
	if u.IsZero() {
		return
	}
	if u.Session == nil {
		// Car-only updates still need the routing key.
		u.Session = &patch.SessionPatch{EventID: next.EventID, SessionID: next.SessionID}
	}

	if err := c.publisher.PublishUpdate(ctx, next.EventID, next.SessionID, u); err != nil {
		c.logger.Warn().Err(err).
			Int(log.FieldEventID, next.EventID).
			Int(log.FieldSessionID, next.SessionID).
			Msg("publish failed, dropping tick update")
		return
	}
	c.lastPublished = next
	c.clearEdgeMarkers(sc.State)
	metrics.IncPatchesPublished("session", 1)
	metrics.IncPatchesPublished("car", len(u.Cars))
}

// clearEdgeMarkers resets the one-shot pit transition flags after they have
// been delivered once. The next tick publishes the falling edge.
func (c *Consolidator) clearEdgeMarkers(s *model.SessionState) {
	for _, car := range s.Cars {
		car.IsEnteredPit = false
		car.IsExitedPit = false
		car.IsPitStartFinish = false
	}
}
