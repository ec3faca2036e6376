package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/timing/model"
)

const schemaVersion = 1

// Lap append retry policy: 3 attempts, exponential from 250ms capped at 5s.
const (
	lapRetryMaxTries        = 3
	lapRetryInitialInterval = 250 * time.Millisecond
	lapRetryMaxInterval     = 5 * time.Second
)

func lapRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lapRetryInitialInterval
	b.MaxInterval = lapRetryMaxInterval
	return b
}

// Store is the SQLite-backed session and lap-log store. It satisfies the
// pipeline's lap sink.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the store at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, logger: log.WithComponent("store")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration failed: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		event_id INTEGER NOT NULL,
		session_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		is_practice_qualifying INTEGER NOT NULL,
		started_at_ms INTEGER NOT NULL,
		ended_at_ms INTEGER,
		finalize_reason TEXT NOT NULL,
		state_json TEXT NOT NULL,
		PRIMARY KEY (event_id, session_id)
	);

	CREATE TABLE IF NOT EXISTS car_laps (
		event_id INTEGER NOT NULL,
		session_id INTEGER NOT NULL,
		car_number TEXT NOT NULL,
		lap INTEGER NOT NULL,
		lap_time_ms INTEGER,
		total_time_ms INTEGER,
		position INTEGER NOT NULL,
		class TEXT NOT NULL,
		flag TEXT NOT NULL,
		pitted INTEGER NOT NULL,
		interpolated INTEGER NOT NULL,
		finalized_at_ms INTEGER NOT NULL,
		PRIMARY KEY (event_id, session_id, car_number, lap)
	);

	CREATE INDEX IF NOT EXISTS idx_car_laps_session ON car_laps(event_id, session_id);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendLaps upserts a batch of finalized laps in one transaction, retrying
// transient failures with exponential backoff. Replaying a batch overwrites
// the same rows, so duplicates from at-least-once delivery are harmless.
func (s *Store) AppendLaps(ctx context.Context, laps []model.CarLapData) error {
	if len(laps) == 0 {
		return nil
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.appendLapsOnce(ctx, laps)
	},
		backoff.WithBackOff(lapRetryBackOff()),
		backoff.WithMaxTries(lapRetryMaxTries),
	)
	if err != nil {
		return fmt.Errorf("store: appending %d laps: %w", len(laps), err)
	}
	return nil
}

func (s *Store) appendLapsOnce(ctx context.Context, laps []model.CarLapData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO car_laps
		(event_id, session_id, car_number, lap, lap_time_ms, total_time_ms,
		 position, class, flag, pitted, interpolated, finalized_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, lap := range laps {
		if _, err := stmt.ExecContext(ctx,
			lap.EventID, lap.SessionID, lap.Number, lap.Lap,
			durationMS(lap.LapTime), durationMS(lap.TotalTime),
			lap.Position, lap.Class, string(lap.Flag),
			lap.Pitted, lap.Interpolated, lap.FinalizedAt.UnixMilli(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveFinalizedSession writes the sealed session snapshot.
func (s *Store) SaveFinalizedSession(ctx context.Context, state *model.SessionState, reason string) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: encoding session state: %w", err)
	}

	var endedAt any
	if state.EndTime != nil {
		endedAt = state.EndTime.UnixMilli()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
		(event_id, session_id, name, is_practice_qualifying, started_at_ms,
		 ended_at_ms, finalize_reason, state_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		state.EventID, state.SessionID, state.SessionName, state.IsPracticeQualifying,
		state.StartTime.UnixMilli(), endedAt, reason, string(stateJSON),
	)
	if err != nil {
		return fmt.Errorf("store: saving session %d:%d: %w", state.EventID, state.SessionID, err)
	}
	s.logger.Info().
		Int(log.FieldEventID, state.EventID).
		Int(log.FieldSessionID, state.SessionID).
		Str("reason", reason).
		Msg("session persisted")
	return nil
}

// FinalizedSession loads a sealed session snapshot, or nil if absent.
func (s *Store) FinalizedSession(ctx context.Context, eventID, sessionID int) (*model.SessionState, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT state_json FROM sessions WHERE event_id = ? AND session_id = ?",
		eventID, sessionID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading session %d:%d: %w", eventID, sessionID, err)
	}
	var state model.SessionState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("store: decoding session %d:%d: %w", eventID, sessionID, err)
	}
	return &state, nil
}

// CarLaps returns a car's lap history in lap order.
func (s *Store) CarLaps(ctx context.Context, eventID, sessionID int, number string) ([]model.CarLapData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lap, lap_time_ms, total_time_ms, position, class, flag,
		       pitted, interpolated, finalized_at_ms
		FROM car_laps
		WHERE event_id = ? AND session_id = ? AND car_number = ?
		ORDER BY lap`,
		eventID, sessionID, number)
	if err != nil {
		return nil, fmt.Errorf("store: loading laps for car %s: %w", number, err)
	}
	defer rows.Close()

	var out []model.CarLapData
	for rows.Next() {
		lap := model.CarLapData{EventID: eventID, SessionID: sessionID, Number: number}
		var lapMS, totalMS sql.NullInt64
		var flag string
		var finalizedMS int64
		if err := rows.Scan(&lap.Lap, &lapMS, &totalMS, &lap.Position, &lap.Class,
			&flag, &lap.Pitted, &lap.Interpolated, &finalizedMS); err != nil {
			return nil, fmt.Errorf("store: scanning lap row: %w", err)
		}
		lap.LapTime = msDuration(lapMS)
		lap.TotalTime = msDuration(totalMS)
		lap.Flag = model.Flag(flag)
		lap.FinalizedAt = time.UnixMilli(finalizedMS)
		out = append(out, lap)
	}
	return out, rows.Err()
}

func durationMS(d time.Duration) any {
	if d == model.NoTime {
		return nil
	}
	return d.Milliseconds()
}

func msDuration(v sql.NullInt64) time.Duration {
	if !v.Valid {
		return model.NoTime
	}
	return time.Duration(v.Int64) * time.Millisecond
}
