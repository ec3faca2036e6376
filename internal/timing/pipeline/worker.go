package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gridpulse/gridpulse/internal/clock"
	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/multiloop"
	"github.com/gridpulse/gridpulse/internal/timing/process"
	"github.com/gridpulse/gridpulse/internal/timing/rmonitor"
	"github.com/gridpulse/gridpulse/internal/timing/session"
	"github.com/gridpulse/gridpulse/internal/timing/x2"
)

// FinalizeReason explains why a session worker sealed its session.
type FinalizeReason string

const (
	ReasonSessionChange FinalizeReason = "change"
	ReasonQuiet         FinalizeReason = "quiet"
	ReasonShutdown      FinalizeReason = "shutdown"
)

// DefaultQuietPeriod seals a session after this long without inbound traffic.
const DefaultQuietPeriod = 10 * time.Minute

// Config sizes one session worker.
type Config struct {
	EventID   int
	SessionID int

	QueueDepth       int
	QuietPeriod      time.Duration
	LapFinalizeDelay time.Duration
	PitDedupWindow   time.Duration
	StaleMinLap      int
}

// Sinks are the worker's outbound ports.
type Sinks struct {
	Publisher process.Publisher
	Laps      process.LapSink

	// OnFinalized receives the sealed state exactly once, after the final
	// update has been published.
	OnFinalized func(ctx context.Context, state *model.SessionState, reason FinalizeReason)

	// OnSessionRefChange fires when the timing system switched to a new
	// session reference so the dispatcher can rotate workers.
	OnSessionRefChange func(newRef int, name string)
}

// Worker drives one session. All state mutation happens on the Run goroutine.
type Worker struct {
	cfg   Config
	sinks Sinks

	sess *session.Context
	clk  clock.Clock

	pit      *process.PitProcessor
	flags    process.FlagProcessor
	laps     *process.LapProcessor
	enricher process.PositionEnricher
	cons     *process.Consolidator

	queue  chan Message
	logger zerolog.Logger

	// snap is the last published deep copy, readable off the Run goroutine.
	snap atomic.Pointer[model.SessionState]

	finalized bool
}

// NewWorker creates a worker for one session.
func NewWorker(cfg Config, clk clock.Clock, sinks Sinks) *Worker {
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	w := &Worker{
		cfg:      cfg,
		sinks:    sinks,
		sess:     session.New(cfg.EventID, cfg.SessionID, clk),
		clk:      clk,
		pit:      process.NewPitProcessor(cfg.PitDedupWindow),
		laps:     process.NewLapProcessor(sinks.Laps, cfg.LapFinalizeDelay),
		enricher: process.PositionEnricher{StaleMinLap: cfg.StaleMinLap},
		cons:     process.NewConsolidator(sinks.Publisher),
		queue:    make(chan Message, cfg.QueueDepth),
		logger:   log.WithSession("pipeline", cfg.EventID, cfg.SessionID),
	}
	w.snap.Store(w.sess.State.Snapshot())
	return w
}

// SeedName pre-sets the session name for a worker spawned on a session-change
// rotation, so the successor is not nameless until upstream re-sends it. Must
// be called before Run starts.
func (w *Worker) SeedName(name string) {
	if name == "" {
		return
	}
	w.sess.State.SessionName = name
	w.snap.Store(w.sess.State.Snapshot())
}

// Enqueue offers a message to the worker without blocking. It reports false
// when the queue is full; the caller counts the drop.
func (w *Worker) Enqueue(msg Message) bool {
	select {
	case w.queue <- msg:
		metrics.QueueDepth.WithLabelValues(w.label()).Set(float64(len(w.queue)))
		return true
	default:
		metrics.QueueDropsTotal.WithLabelValues(w.label()).Inc()
		return false
	}
}

// State exposes the latest deep copy of the session state for debug surfaces.
// It is safe to call from any goroutine.
func (w *Worker) State() *model.SessionState {
	return w.snap.Load()
}

// Run processes messages until the session finalizes or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	w.logger.Info().Msg("session worker started")
	for {
		select {
		case <-ctx.Done():
			w.finalize(context.WithoutCancel(ctx), ReasonShutdown)
			return ctx.Err()
		case msg := <-w.queue:
			metrics.QueueDepth.WithLabelValues(w.label()).Set(float64(len(w.queue)))
			start := w.clk.Now()
			done := w.handle(ctx, msg)
			metrics.ObserveTick(w.clk.Now().Sub(start))
			if done {
				return nil
			}
		case <-ticker.C:
			w.laps.Flush(ctx, w.sess)
			w.cons.Process(ctx, w.sess)
			w.snap.Store(w.sess.State.Snapshot())
			if w.clk.Now().Sub(w.sess.LastMessageAt()) >= w.cfg.QuietPeriod {
				w.finalize(ctx, ReasonQuiet)
				return nil
			}
		}
	}
}

// handle applies one message and runs the processor chain. It reports whether
// the worker should stop.
func (w *Worker) handle(ctx context.Context, msg Message) bool {
	w.sess.Touch()
	metrics.IncMessageConsumed(string(msg.Feed))

	switch msg.Feed {
	case FeedRMonitor:
		out := w.sess.ApplyRM(rmonitor.ParseBatch(string(msg.Data)))
		if out.SessionRefChanged {
			w.logger.Info().
				Int("new_ref", out.NewSessionRef).
				Str("name", out.NewSessionName).
				Msg("session reference changed")
			w.finalize(ctx, ReasonSessionChange)
			if w.sinks.OnSessionRefChange != nil {
				w.sinks.OnSessionRefChange(out.NewSessionRef, out.NewSessionName)
			}
			return true
		}
	case FeedMultiloop:
		w.sess.ApplyML(multiloop.ParseBatch(string(msg.Data)))
	case FeedPassings:
		passings, err := x2.ParsePassings(msg.Data)
		if err != nil {
			w.logger.Warn().Err(err).Msg("bad passings payload")
			metrics.IncParseError("x2", "passing")
			return false
		}
		w.pit.Process(w.sess, passings)
	case FeedLoops:
		loops, err := x2.ParseLoops(msg.Data)
		if err != nil {
			w.logger.Warn().Err(err).Msg("bad loops payload")
			metrics.IncParseError("x2", "loop")
			return false
		}
		w.pit.UpdateLoops(loops)
	case FeedVideo:
		video, err := x2.ParseVideo(msg.Data)
		if err != nil {
			w.logger.Warn().Err(err).Msg("bad video payload")
			metrics.IncParseError("x2", "video")
			return false
		}
		w.sess.ApplyVideo(video)
	case FeedSessionChange:
		change, err := x2.ParseSessionChange(msg.Data)
		if err != nil {
			w.logger.Warn().Err(err).Msg("bad session change payload")
			metrics.IncParseError("x2", "session_change")
			return false
		}
		if change.ID != w.cfg.SessionID {
			w.finalize(ctx, ReasonSessionChange)
			if w.sinks.OnSessionRefChange != nil {
				w.sinks.OnSessionRefChange(change.ID, change.Name)
			}
			return true
		}
		w.sess.State.SessionName = change.Name
		w.sess.State.IsPracticeQualifying = change.IsPracticeQualifying
		w.sess.State.LocalTimeZoneOffset = change.LocalTimeZoneOffset
	case FeedReset:
		w.sess.ApplyResetRequest()
	default:
		w.logger.Warn().Str(log.FieldFeed, string(msg.Feed)).Msg("unknown feed type")
		return false
	}

	w.flags.Process(w.sess)
	w.laps.Process(w.sess)
	w.laps.Flush(ctx, w.sess)
	w.enricher.Process(w.sess)
	w.sess.CheckConsistency()
	w.cons.Process(ctx, w.sess)
	w.snap.Store(w.sess.State.Snapshot())
	return false
}

// finalize drains buffered laps, seals the state and publishes the closing
// update before handing the snapshot to the finalization sink.
func (w *Worker) finalize(ctx context.Context, reason FinalizeReason) {
	if w.finalized {
		return
	}
	w.finalized = true

	w.laps.Drain(ctx, w.sess)
	w.sess.Finalize()
	w.enricher.Process(w.sess)
	w.cons.Process(ctx, w.sess)
	w.snap.Store(w.sess.State.Snapshot())

	metrics.SessionsFinalizedTotal.WithLabelValues(string(reason)).Inc()
	w.logger.Info().Str("reason", string(reason)).Msg("session finalized")

	if w.sinks.OnFinalized != nil {
		w.sinks.OnFinalized(ctx, w.sess.State.Snapshot(), reason)
	}
}

func (w *Worker) label() string {
	return model.SessionLabel(w.cfg.EventID, w.cfg.SessionID)
}
