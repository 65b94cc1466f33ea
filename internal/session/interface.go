package session

import (
	"context"
	"time"

	"codeberg.org/mutker/blinktrack/internal/blink"
)

// Summary is the final record of a tracking session.
type Summary struct {
	SessionID int64         `json:"session_id"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Blinks    int           `json:"blinks"`
	Duration  time.Duration `json:"-"`
}

// BlinksPerMinute returns the session rate rounded to one decimal.
func (s Summary) BlinksPerMinute() float64 {
	return Rate(s.Blinks, s.Duration)
}

// Persistence stores sessions, blinks and settings. Callers treat every
// method as best effort and keep detecting when one fails.
type Persistence interface {
	CreateSession(ctx context.Context, start time.Time) (int64, error)
	RecordBlink(ctx context.Context, sessionID int64, ev blink.Event) error
	EndSession(ctx context.Context, sessionID int64, end time.Time) error
	SaveSessionSummary(ctx context.Context, s Summary) error
	TotalBlinkCount(ctx context.Context) (int, error)
	GetSetting(ctx context.Context, key, fallback string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}
