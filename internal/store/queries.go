package store

import (
	"context"
	"database/sql"
	"math"
	"time"
)

const (
	defaultSessionLimit = 10
	summaryWindowDays   = 30
)

// DailyStats describes the blinks recorded on one calendar day.
type DailyStats struct {
	Date               string      `json:"date"`
	TotalBlinks        int         `json:"total_blinks"`
	FirstBlink         *time.Time  `json:"first_blink"`
	LastBlink          *time.Time  `json:"last_blink"`
	HourlyDistribution map[int]int `json:"hourly_distribution"`
}

// SessionRecord is a stored tracking session.
type SessionRecord struct {
	ID              int64      `json:"id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	TotalBlinks     int        `json:"total_blinks"`
	DurationSeconds int64      `json:"duration_seconds"`
	AverageBPM      float64    `json:"average_bpm"`
	Notes           string     `json:"notes"`
}

// Summary aggregates every stored blink and completed session.
type Summary struct {
	TotalBlinks            int     `json:"total_blinks"`
	TodayBlinks            int     `json:"today_blinks"`
	AveragePerDay          float64 `json:"average_per_day"`
	TotalSessions          int     `json:"total_sessions"`
	AverageSessionDuration float64 `json:"average_session_duration"`
	AverageBPM             float64 `json:"average_bpm"`
}

func (s *Store) dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.In(s.loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *Store) countBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blinks WHERE timestamp >= ? AND timestamp < ?`,
		s.format(from), s.format(to)).Scan(&n)
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageQuery, err)
	}

	return n, nil
}

// DailyStats returns the totals and hourly distribution for the day
// containing day.
func (s *Store) DailyStats(ctx context.Context, day time.Time) (DailyStats, error) {
	if err := s.Flush(ctx); err != nil {
		return DailyStats{}, err
	}

	start, end := s.dayBounds(day)
	stats := DailyStats{
		Date:               start.Format(dateLayout),
		HourlyDistribution: make(map[int]int),
	}

	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx, `
    SELECT COUNT(*), MIN(timestamp), MAX(timestamp)
    FROM blinks WHERE timestamp >= ? AND timestamp < ?`,
		s.format(start), s.format(end)).Scan(&stats.TotalBlinks, &first, &last)
	if err != nil {
		return DailyStats{}, errFactory.Wrap(ErrStorageQuery, err)
	}

	if stats.FirstBlink, err = s.parseNull(first); err != nil {
		return DailyStats{}, err
	}
	if stats.LastBlink, err = s.parseNull(last); err != nil {
		return DailyStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
    SELECT CAST(strftime('%H', timestamp) AS INTEGER) AS hour, COUNT(*)
    FROM blinks WHERE timestamp >= ? AND timestamp < ?
    GROUP BY hour ORDER BY hour`,
		s.format(start), s.format(end))
	if err != nil {
		return DailyStats{}, errFactory.Wrap(ErrStorageQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var hour, count int
		if err := rows.Scan(&hour, &count); err != nil {
			return DailyStats{}, errFactory.Wrap(ErrStorageQuery, err)
		}
		stats.HourlyDistribution[hour] = count
	}
	if err := rows.Err(); err != nil {
		return DailyStats{}, errFactory.Wrap(ErrStorageQuery, err)
	}

	return stats, nil
}

// WeeklyStats returns seven days of stats starting on the Monday of the
// week containing day.
func (s *Store) WeeklyStats(ctx context.Context, day time.Time) ([]DailyStats, error) {
	start, _ := s.dayBounds(day)
	monday := start.AddDate(0, 0, -((int(start.Weekday()) + 6) % 7))

	week := make([]DailyStats, 0, 7)
	for i := 0; i < 7; i++ {
		d, err := s.DailyStats(ctx, monday.AddDate(0, 0, i))
		if err != nil {
			return nil, err
		}
		week = append(week, d)
	}

	return week, nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = defaultSessionLimit
	}

	rows, err := s.db.QueryContext(ctx, `
    SELECT id, start_time, end_time, total_blinks, duration_seconds, average_bpm, notes
    FROM sessions ORDER BY start_time DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageQuery, err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec   SessionRecord
			start string
			end   sql.NullString
		)
		if err := rows.Scan(&rec.ID, &start, &end, &rec.TotalBlinks,
			&rec.DurationSeconds, &rec.AverageBPM, &rec.Notes); err != nil {
			return nil, errFactory.Wrap(ErrStorageQuery, err)
		}
		if rec.StartTime, err = s.parse(start); err != nil {
			return nil, errFactory.Wrap(ErrStorageQuery, err)
		}
		if rec.EndTime, err = s.parseNull(end); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageQuery, err)
	}

	return out, nil
}

// Summary returns lifetime totals as of now. The per-day average covers the
// last 30 days.
func (s *Store) Summary(ctx context.Context, now time.Time) (Summary, error) {
	if err := s.Flush(ctx); err != nil {
		return Summary{}, err
	}

	var sum Summary
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blinks`).Scan(&sum.TotalBlinks); err != nil {
		return Summary{}, errFactory.Wrap(ErrStorageQuery, err)
	}

	todayStart, todayEnd := s.dayBounds(now)
	today, err := s.countBetween(ctx, todayStart, todayEnd)
	if err != nil {
		return Summary{}, err
	}
	sum.TodayBlinks = today

	recent, err := s.countBetween(ctx, now.AddDate(0, 0, -summaryWindowDays), now.Add(time.Millisecond))
	if err != nil {
		return Summary{}, err
	}
	sum.AveragePerDay = round1(float64(recent) / summaryWindowDays)

	var avgDuration, avgBPM float64
	err = s.db.QueryRowContext(ctx, `
    SELECT COUNT(*), COALESCE(AVG(duration_seconds), 0), COALESCE(AVG(average_bpm), 0)
    FROM sessions WHERE end_time IS NOT NULL`).Scan(&sum.TotalSessions, &avgDuration, &avgBPM)
	if err != nil {
		return Summary{}, errFactory.Wrap(ErrStorageQuery, err)
	}
	sum.AverageSessionDuration = round1(avgDuration)
	sum.AverageBPM = round1(avgBPM)

	return sum, nil
}

// Cleanup deletes blinks and sessions older than retentionDays and returns
// the number of rows removed.
func (s *Store) Cleanup(ctx context.Context, retentionDays int, now time.Time) (int64, error) {
	if retentionDays <= 0 {
		return 0, errFactory.WithData(ErrInvalidArgument, struct {
			Field string
			Value int
		}{
			Field: "retention_days",
			Value: retentionDays,
		})
	}

	if err := s.Flush(ctx); err != nil {
		return 0, err
	}

	cutoff := s.format(now.AddDate(0, 0, -retentionDays))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}

	var removed int64
	for _, q := range []string{
		`DELETE FROM blinks WHERE timestamp < ?`,
		`DELETE FROM sessions WHERE start_time < ?`,
	} {
		res, err := tx.ExecContext(ctx, q, cutoff)
		if err != nil {
			if err := tx.Rollback(); err != nil {
				s.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return 0, errFactory.Wrap(ErrStorageWrite, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}

	s.logger.Info().
		Int("retention_days", retentionDays).
		Int64("removed", removed).
		Msg("Old records cleaned up")

	return removed, nil
}

func (s *Store) parseNull(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}

	t, err := s.parse(v.String)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageQuery, err)
	}

	return &t, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
