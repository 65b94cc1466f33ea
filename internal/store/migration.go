package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/blinktrack/internal/logger"
	"github.com/pressly/goose/v3"
)

// SchemaVersion is the newest migration shipped in migrations/.
const SchemaVersion = 2

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its dialect, base FS and logger in package globals.
var gooseMu sync.Mutex

type gooseLogger struct {
	log logger.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func setupGoose(log logger.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log})

	return goose.SetDialect("sqlite3")
}

func backupDatabase(db *sql.DB, dir string, version int64, log logger.Logger) (string, error) {
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup_dir",
			Path:  dir,
			Error: err.Error(),
		})
	}

	timestamp := time.Now().UTC().Format("20060102T150405Z")
	backupPath := filepath.Join(dir, fmt.Sprintf("blinktrack_v%d_%s.db", version, timestamp))

	// VACUUM INTO requires no active transaction
	quoted := strings.ReplaceAll(backupPath, "'", "''")
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup",
			Path:  backupPath,
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", backupPath).
		Int64("version", version).
		Msg("Database backup created")

	return backupPath, nil
}

// migrate brings the schema up to target, backing up an existing database
// before any of its migrations run. A target of 0 means SchemaVersion.
func migrate(ctx context.Context, db *sql.DB, backupDir string, target int64, log logger.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if target == 0 {
		target = SchemaVersion
	}

	if err := setupGoose(log); err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to get schema version")
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	log.Debug().
		Int64("version", version).
		Bool("init_db", version == 0).
		Msg("Current schema version")

	if version >= target {
		log.Debug().Int64("version", version).Msg("Schema version is current")
		return nil
	}

	if version > 0 {
		if _, err := backupDatabase(db, backupDir, version, log); err != nil {
			return err
		}
	}

	if err := goose.UpToContext(ctx, db, migrationsDir, target); err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			From  int64
			To    int64
			Error string
		}{
			Phase: "apply_migrations",
			From:  version,
			To:    target,
			Error: err.Error(),
		})
	}

	log.Info().
		Int64("from", version).
		Int64("to", target).
		Msg("Database schema migrated")

	return nil
}

func schemaVersion(ctx context.Context, db *sql.DB, log logger.Logger) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(log); err != nil {
		return 0, errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageQuery, err)
	}

	return version, nil
}
