// Package process implements the fixed processor chain that runs after the
// parsers on every pipeline tick: pit, flag, lap, position enrichment and
// update consolidation. Processors are stateless with respect to the session
// context and receive it per call.
package process

import (
	"time"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/timing/session"
	"github.com/gridpulse/gridpulse/internal/timing/x2"
)

type passingKey struct {
	transponder uint32
	loop        uint32
	ts          int64
}

// PitProcessor correlates transponder loop passings with pit-lane loops to
// derive per-car pit state. Passings are deduplicated on
// (transponder, loop, timestamp) within a sliding window.
type PitProcessor struct {
	dedupWindow time.Duration
	seen        map[passingKey]time.Time
	loops       map[uint32]x2.LoopRole
}

// DefaultDedupWindow bounds retention of seen passing triples.
const DefaultDedupWindow = 60 * time.Second

// NewPitProcessor creates a pit processor with the given dedup window.
func NewPitProcessor(dedupWindow time.Duration) *PitProcessor {
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	return &PitProcessor{
		dedupWindow: dedupWindow,
		seen:        make(map[passingKey]time.Time),
		loops:       make(map[uint32]x2.LoopRole),
	}
}

// UpdateLoops replaces the loop role map.
func (p *PitProcessor) UpdateLoops(loops []x2.Loop) {
	for _, l := range loops {
		p.loops[l.LoopID] = l.Role
	}
}

// Process applies a batch of passings to the session. Duplicate passings are
// suppressed, so replaying a batch leaves the pit state unchanged.
func (p *PitProcessor) Process(c *session.Context, passings []x2.Passing) {
	now := c.Clock.Now()
	p.evict(now)

	logger := log.WithSession("pit", c.State.EventID, c.State.SessionID)
	for _, pass := range passings {
		key := passingKey{pass.TransponderID, pass.LoopID, pass.Timestamp.UnixNano()}
		if _, dup := p.seen[key]; dup {
			continue
		}
		p.seen[key] = now

		role, known := p.loops[pass.LoopID]
		if !known {
			continue
		}
		car := c.State.CarByTransponder(pass.TransponderID)
		if car == nil {
			logger.Debug().Uint32("transponder", pass.TransponderID).
				Uint32("loop", pass.LoopID).
				Msg("passing for unknown transponder")
			continue
		}

		switch role {
		case x2.RolePitIn:
			car.IsInPit = true
			car.IsEnteredPit = true
			car.LastLapPitted = car.LastLapCompleted
			car.PitStopCount++
			car.PittedCurrentLap = true
			metrics.PitStopsTotal.Inc()
		case x2.RolePitOut:
			car.IsInPit = false
			car.IsExitedPit = true
		case x2.RolePitStartFinish:
			car.IsPitStartFinish = true
		case x2.RoleTimingLine, x2.RoleIntermediate:
			// Timing and intermediate loops do not affect pit state.
		}
	}
}

func (p *PitProcessor) evict(now time.Time) {
	cutoff := now.Add(-p.dedupWindow)
	for k, seenAt := range p.seen {
		if seenAt.Before(cutoff) {
			delete(p.seen, k)
		}
	}
}
