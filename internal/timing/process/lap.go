package process

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/session"
)

// LapSink receives finalized lap records. Appends are at-least-once; the sink
// is expected to tolerate duplicates.
type LapSink interface {
	AppendLaps(ctx context.Context, laps []model.CarLapData) error
}

// DefaultFinalizeDelay gives slow-arriving passing records time to correct a
// lap time before the lap is emitted.
const DefaultFinalizeDelay = time.Second

// MaxBufferedLaps bounds the in-memory park when the sink is unhealthy.
const MaxBufferedLaps = 10_000

type pendingLap struct {
	data    model.CarLapData
	readyAt time.Time
}

// LapProcessor finalizes per-car laps and ships them to the lap log sink.
// Laps are held for a short delay before emission; when a car's lap counter
// jumps, the missing laps are interpolated with unknown times so downstream
// history is not sparse.
type LapProcessor struct {
	sink   LapSink
	delay  time.Duration
	logger zerolog.Logger

	lastFinalized map[string]int
	pending       []pendingLap
	parked        []model.CarLapData
}

// NewLapProcessor creates a lap processor writing to sink.
func NewLapProcessor(sink LapSink, delay time.Duration) *LapProcessor {
	if delay <= 0 {
		delay = DefaultFinalizeDelay
	}
	return &LapProcessor{
		sink:          sink,
		delay:         delay,
		logger:        log.WithComponent("laps"),
		lastFinalized: make(map[string]int),
	}
}

// Process detects newly completed laps on every car and queues them for
// emission.
func (l *LapProcessor) Process(c *session.Context) {
	s := c.State
	now := c.Clock.Now()

	for _, car := range s.Cars {
		last := l.lastFinalized[car.Number]
		if car.LastLapCompleted <= last {
			continue
		}
		for lap := last + 1; lap <= car.LastLapCompleted; lap++ {
			data := model.CarLapData{
				EventID:     s.EventID,
				SessionID:   s.SessionID,
				Number:      car.Number,
				Lap:         lap,
				LapTime:     model.NoTime,
				TotalTime:   car.TotalTime,
				Position:    car.OverallPosition,
				Class:       car.Class,
				Flag:        s.CurrentFlag,
				FinalizedAt: now,
			}
			if lap == car.LastLapCompleted {
				data.LapTime = car.LastLapTime
				data.Pitted = car.PittedCurrentLap || car.LastLapPitted == lap
			} else {
				data.Interpolated = true
			}
			l.pending = append(l.pending, pendingLap{data: data, readyAt: now.Add(l.delay)})
		}
		car.PittedCurrentLap = false
		l.lastFinalized[car.Number] = car.LastLapCompleted
	}
}

// Flush emits pending laps whose hold delay has elapsed. The freshest lap of
// each car re-reads the car's current lap time so a late passing record can
// still correct it. On sink failure the batch is parked in memory, bounded,
// and retried on the next flush.
func (l *LapProcessor) Flush(ctx context.Context, c *session.Context) {
	now := c.Clock.Now()

	var due []model.CarLapData
	remaining := l.pending[:0]
	for _, p := range l.pending {
		if p.readyAt.After(now) {
			remaining = append(remaining, p)
			continue
		}
		if car, ok := c.State.Cars[p.data.Number]; ok &&
			!p.data.Interpolated && p.data.Lap == car.LastLapCompleted && car.LastLapTime != model.NoTime {
			p.data.LapTime = car.LastLapTime
		}
		due = append(due, p.data)
	}
	l.pending = remaining

	batch := append(l.parked, due...)
	if len(batch) == 0 {
		return
	}
	l.parked = nil

	if err := l.sink.AppendLaps(ctx, batch); err != nil {
		l.park(c, batch)
		l.logger.Warn().Err(err).Int("laps", len(batch)).Msg("lap sink append failed, parked batch")
		return
	}
	metrics.LapsFinalizedTotal.Add(float64(len(due)))
	metrics.LapLogBufferedRows.WithLabelValues(sessionLabel(c)).Set(0)
}

// Drain emits everything regardless of delay; used at session finalization.
func (l *LapProcessor) Drain(ctx context.Context, c *session.Context) {
	for i := range l.pending {
		l.pending[i].readyAt = time.Time{}
	}
	l.Flush(ctx, c)
}

func (l *LapProcessor) park(c *session.Context, batch []model.CarLapData) {
	l.parked = batch
	if overflow := len(l.parked) - MaxBufferedLaps; overflow > 0 {
		l.parked = l.parked[overflow:]
		l.logger.Warn().Int("dropped", overflow).Msg("lap buffer overflow, dropped oldest laps")
	}
	metrics.LapLogBufferedRows.WithLabelValues(sessionLabel(c)).Set(float64(len(l.parked)))
}

func sessionLabel(c *session.Context) string {
	return model.SessionLabel(c.State.EventID, c.State.SessionID)
}
