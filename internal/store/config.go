package store

import (
	"time"

	"codeberg.org/mutker/blinktrack/internal/config"
)

const (
	defaultDirPerm   = 0o755
	defaultBatchSize = 50
	backupDirName    = "backups"

	// timestampLayout sorts lexically and is understood by sqlite's date functions.
	timestampLayout = "2006-01-02 15:04:05.000"
	dateLayout      = "2006-01-02"
)

type Config struct {
	Path          string
	BatchSize     int
	FlushInterval time.Duration
	// Location is the zone used for stored timestamps and day boundaries.
	// Nil means time.Local.
	Location *time.Location
}

func ConfigFrom(c config.DatabaseConfig) Config {
	return Config{
		Path:          c.Path,
		BatchSize:     c.BatchSize,
		FlushInterval: c.FlushInterval,
	}
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.FlushInterval < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize     int
			FlushInterval time.Duration
		}{
			BatchSize:     c.BatchSize,
			FlushInterval: c.FlushInterval,
		})
	}

	return nil
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}

	return c.Location
}
