package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/blinktrack/internal/blink"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"codeberg.org/mutker/blinktrack/internal/logger"
	"codeberg.org/mutker/blinktrack/internal/session"
	_ "github.com/mattn/go-sqlite3"
)

var errFactory = errors.New()

var _ session.Persistence = (*Store)(nil)

const insertBlinkSQL = `
    INSERT INTO blinks (
        timestamp, ear_value, session_id, duration_ms, threshold
    ) VALUES (?, ?, ?, ?, ?)`

type pendingBlink struct {
	sessionID int64
	ev        blink.Event
}

// Store is the sqlite implementation of session.Persistence. Blink writes
// are buffered and flushed in a single transaction.
type Store struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	loc    *time.Location

	mu            sync.Mutex
	buffer        []pendingBlink
	closed        bool
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

// Open opens or creates the database at cfg.Path and migrates it.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Path,
			Error: err.Error(),
		})
	}

	dsn := cfg.Path + "?_journal=WAL&_auto_vacuum=2&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, filepath.Join(dir, backupDirName), 0, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.Path).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("flush_interval", cfg.FlushInterval).
		Msg("Blink store initialized")

	s := &Store{
		db:            db,
		logger:        log,
		cfg:           cfg,
		loc:           cfg.location(),
		buffer:        make([]pendingBlink, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.FlushInterval > 0 {
		s.flushTicker = time.NewTicker(cfg.FlushInterval)
		go s.flusher()
	} else {
		close(s.flushDoneChan)
	}

	return s, nil
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	return schemaVersion(ctx, s.db, s.logger)
}

func (s *Store) format(t time.Time) string {
	return t.In(s.loc).Format(timestampLayout)
}

func (s *Store) parse(v string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, v, s.loc)
}

func (s *Store) CreateSession(ctx context.Context, start time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO sessions (start_time) VALUES (?)`, s.format(start))
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageWrite, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageWrite, err)
	}

	s.logger.Debug().Int64("session_id", id).Msg("Session created")

	return id, nil
}

// RecordBlink buffers the blink and flushes once the batch is full.
func (s *Store) RecordBlink(ctx context.Context, sessionID int64, ev blink.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errFactory.WithMessage(ErrStorageWrite, "store is closed")
	}

	s.buffer = append(s.buffer, pendingBlink{sessionID: sessionID, ev: ev})

	if len(s.buffer) >= s.cfg.BatchSize {
		return s.flush(ctx)
	}

	return nil
}

func (s *Store) EndSession(ctx context.Context, sessionID int64, end time.Time) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
    UPDATE sessions SET
        end_time = ?,
        total_blinks = (SELECT COUNT(*) FROM blinks WHERE session_id = ?),
        duration_seconds = CAST(ROUND((julianday(?) - julianday(start_time)) * 86400) AS INTEGER)
    WHERE id = ?`, s.format(end), sessionID, s.format(end), sessionID)
	if err != nil {
		return errFactory.Wrap(ErrStorageWrite, err)
	}

	return nil
}

// SaveSessionSummary updates the session row it belongs to, or inserts a
// new row when the session was never created.
func (s *Store) SaveSessionSummary(ctx context.Context, sum session.Summary) error {
	values := []interface{}{
		s.format(sum.End),
		sum.Blinks,
		int64(sum.Duration.Seconds()),
		sum.BlinksPerMinute(),
	}

	if sum.SessionID > 0 {
		res, err := s.db.ExecContext(ctx, `
    UPDATE sessions SET
        end_time = ?, total_blinks = ?, duration_seconds = ?, average_bpm = ?
    WHERE id = ?`, append(values, sum.SessionID)...)
		if err != nil {
			return errFactory.Wrap(ErrStorageWrite, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
	}

	_, err := s.db.ExecContext(ctx, `
    INSERT INTO sessions (
        start_time, end_time, total_blinks, duration_seconds, average_bpm
    ) VALUES (?, ?, ?, ?, ?)`, append([]interface{}{s.format(sum.Start)}, values...)...)
	if err != nil {
		return errFactory.Wrap(ErrStorageWrite, err)
	}

	return nil
}

func (s *Store) TotalBlinkCount(ctx context.Context) (int, error) {
	if err := s.Flush(ctx); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blinks`).Scan(&n); err != nil {
		return 0, errFactory.Wrap(ErrStorageQuery, err)
	}

	return n, nil
}

func (s *Store) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return fallback, errFactory.Wrap(ErrStorageQuery, err)
	}

	return v, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
    ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.format(time.Now()))
	if err != nil {
		return errFactory.Wrap(ErrStorageWrite, err)
	}

	return nil
}

// Settings returns every stored setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageQuery, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, errFactory.Wrap(ErrStorageQuery, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageQuery, err)
	}

	return out, nil
}

// Flush writes any buffered blinks.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flush(ctx)
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.flushTicker != nil {
		close(s.shutdownChan)
		s.flushTicker.Stop()
	}

	// Wait for the flusher to finish its final flush
	<-s.flushDoneChan

	if err := s.Flush(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to flush blinks on close")
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := s.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	s.logger.Info().Msg("Blink store closed gracefully")

	return nil
}

func (s *Store) flusher() {
	defer close(s.flushDoneChan)

	for {
		select {
		case <-s.flushTicker.C:
			s.mu.Lock()
			if err := s.flush(context.Background()); err != nil {
				s.logger.Warn().Err(err).Msg("Periodic blink flush failed")
			}
			s.mu.Unlock()
		case <-s.shutdownChan:
			return
		}
	}
}

// flush must be called with s.mu held.
func (s *Store) flush(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertBlinkSQL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to prepare statement")
		if err := tx.Rollback(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, p := range s.buffer {
		values := []interface{}{
			s.format(p.ev.Timestamp),
			p.ev.EAR,
			nullID(p.sessionID),
			nullDuration(p.ev),
			p.ev.Threshold,
		}

		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			s.logger.Error().Err(err).Msg("Failed to execute insert")
			if err := tx.Rollback(); err != nil {
				s.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	s.logger.Debug().Int("records", len(s.buffer)).Msg("Flushed blinks to database")
	s.buffer = s.buffer[:0]

	return nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func nullDuration(ev blink.Event) sql.NullInt64 {
	return sql.NullInt64{Int64: ev.Duration.Milliseconds(), Valid: ev.DurationKnown}
}
