// Package dispatch routes inbound feed messages to per-session pipeline
// workers, spawning and retiring workers as sessions come and go.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/pipeline"
)

// WorkerFactory builds a worker for a session the dispatcher has not seen
// before. onRefChange must be installed as the worker's OnSessionRefChange
// sink; the dispatcher uses it to rotate to the successor session.
type WorkerFactory func(eventID, sessionID int, onRefChange func(newRef int, name string)) *pipeline.Worker

// Dispatcher fans inbound messages out to session workers. Each worker runs
// on its own goroutine in the dispatcher's group; the dispatcher only touches
// the worker map under its lock.
type Dispatcher struct {
	factory WorkerFactory
	podName string

	mu      sync.Mutex
	workers map[string]*pipeline.Worker

	group  *errgroup.Group
	gctx   context.Context
	logger zerolog.Logger
}

// New creates a dispatcher. podName scopes which sessions this instance
// accepts; an empty pod name accepts everything.
func New(ctx context.Context, factory WorkerFactory, podName string) *Dispatcher {
	group, gctx := errgroup.WithContext(ctx)
	return &Dispatcher{
		factory: factory,
		podName: podName,
		workers: make(map[string]*pipeline.Worker),
		group:   group,
		gctx:    gctx,
		logger:  log.WithComponent("dispatch"),
	}
}

// Dispatch routes one message, creating the session worker on first contact.
// Messages for sessions pinned to another pod are ignored.
func (d *Dispatcher) Dispatch(msg Envelope) {
	if msg.AssignedPod != "" && d.podName != "" && msg.AssignedPod != d.podName {
		return
	}

	w := d.worker(msg.EventID, msg.SessionID)
	if w == nil {
		return
	}
	if !w.Enqueue(pipeline.Message{
		Feed:       msg.Feed,
		EventID:    msg.EventID,
		SessionID:  msg.SessionID,
		Data:       msg.Data,
		ReceivedAt: msg.ReceivedAt,
	}) {
		d.logger.Warn().
			Int(log.FieldEventID, msg.EventID).
			Int(log.FieldSessionID, msg.SessionID).
			Str(log.FieldFeed, string(msg.Feed)).
			Msg("session queue full, message dropped")
	}
}

// States snapshots every live session, for the debug surface.
func (d *Dispatcher) States() []*model.SessionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*model.SessionState, 0, len(d.workers))
	for _, w := range d.workers {
		out = append(out, w.State())
	}
	return out
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() error {
	err := d.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// rotate spins up the successor worker after a session reference change so
// records arriving for the new session have a home immediately. The name from
// the change notification seeds the new state.
func (d *Dispatcher) rotate(eventID, newRef int, name string) {
	d.logger.Info().
		Int(log.FieldEventID, eventID).
		Int(log.FieldSessionID, newRef).
		Str("name", name).
		Msg("rotating to new session")
	d.workerNamed(eventID, newRef, name)
}

func (d *Dispatcher) worker(eventID, sessionID int) *pipeline.Worker {
	return d.workerNamed(eventID, sessionID, "")
}

func (d *Dispatcher) workerNamed(eventID, sessionID int, name string) *pipeline.Worker {
	if d.gctx.Err() != nil {
		return nil
	}
	key := model.SessionLabel(eventID, sessionID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.workers[key]; ok {
		return w
	}

	w := d.factory(eventID, sessionID, func(newRef int, name string) {
		d.rotate(eventID, newRef, name)
	})
	w.SeedName(name)
	d.workers[key] = w
	d.logger.Info().
		Int(log.FieldEventID, eventID).
		Int(log.FieldSessionID, sessionID).
		Msg("starting session worker")

	d.group.Go(func() error {
		err := w.Run(d.gctx)
		d.mu.Lock()
		delete(d.workers, key)
		d.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return w
}
