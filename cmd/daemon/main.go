// Command daemon is the session state processing service: it consumes timing
// feeds from the transport, runs one pipeline worker per live session and
// publishes consolidated state updates.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gridpulse/gridpulse/internal/api"
	"github.com/gridpulse/gridpulse/internal/archive"
	"github.com/gridpulse/gridpulse/internal/clock"
	"github.com/gridpulse/gridpulse/internal/config"
	"github.com/gridpulse/gridpulse/internal/dispatch"
	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/pipeline"
	"github.com/gridpulse/gridpulse/internal/transport"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("gridpulse %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log.Configure(log.Config{
		Level:   "info",
		Service: "gridpulse",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration invalid")
	}
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "gridpulse",
		Version: version,
	})

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Msg("daemon stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.WithComponent("daemon")

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	redis, err := transport.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer redis.Close()

	var archiver *archive.Writer
	if cfg.ArchiveDir != "" {
		archiver, err = archive.NewWriter(cfg.ArchiveDir)
		if err != nil {
			return err
		}
	}

	onFinalized := func(ctx context.Context, state *model.SessionState, reason pipeline.FinalizeReason) {
		if err := db.SaveFinalizedSession(ctx, state, string(reason)); err != nil {
			logger.Error().Err(err).
				Int(log.FieldEventID, state.EventID).
				Int(log.FieldSessionID, state.SessionID).
				Msg("persisting finalized session failed")
		}
		if archiver != nil {
			if _, err := archiver.Write(state, string(reason)); err != nil {
				logger.Error().Err(err).
					Int(log.FieldEventID, state.EventID).
					Int(log.FieldSessionID, state.SessionID).
					Msg("archiving finalized session failed")
			}
		}
	}

	factory := func(eventID, sessionID int, onRefChange func(int, string)) *pipeline.Worker {
		return pipeline.NewWorker(pipeline.Config{
			EventID:          eventID,
			SessionID:        sessionID,
			QueueDepth:       cfg.QueueDepth,
			QuietPeriod:      cfg.FinalizeQuietPeriod,
			LapFinalizeDelay: cfg.LapFinalizeDelay,
			PitDedupWindow:   cfg.PitDedupWindow,
			StaleMinLap:      cfg.StaleCheckMinLap,
		}, clock.System{}, pipeline.Sinks{
			Publisher:          redis,
			Laps:               db,
			OnFinalized:        onFinalized,
			OnSessionRefChange: onRefChange,
		})
	}
	dispatcher := dispatch.New(ctx, factory, cfg.PodName)

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewRouter(api.Deps{
			States: dispatcher.States,
			Ready:  func() bool { return true },
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		err := redis.ConsumeFeed(gctx, func(env dispatch.Envelope) {
			if env.EventID == 0 {
				env.EventID = cfg.EventID
			}
			dispatcher.Dispatch(env)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(dispatcher.Wait)

	logger.Info().
		Int("event_id", cfg.EventID).
		Str("pod", cfg.PodName).
		Msg("session state processor started")
	return group.Wait()
}
