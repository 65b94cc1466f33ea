// Package notify formats health insights and delivers them to the log,
// a NATS subject, or several targets at once.
package notify

import (
	"strings"
	"time"

	"codeberg.org/mutker/blinktrack/internal/health"
)

const (
	MaxTitleLength   = 63
	MaxMessageLength = 240
	maxRecommended   = 2
	ellipsis         = "..."
)

// Notification is an insight shaped for a desktop notification.
type Notification struct {
	Status    string        `json:"status"`
	Level     health.Level  `json:"level"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Timeout   time.Duration `json:"-"`
	TimeoutMs int64         `json:"timeout_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

// Timeout returns how long a notification of the given level stays visible.
func Timeout(level health.Level) time.Duration {
	switch level {
	case health.LevelCritical:
		return 30 * time.Second
	case health.LevelAlert:
		return 20 * time.Second
	case health.LevelWarning:
		return 15 * time.Second
	default:
		return 10 * time.Second
	}
}

// Format builds the notification for an insight at now.
func Format(insight health.Insight, now time.Time) Notification {
	title := insight.Title
	if insight.Icon != "" {
		title = insight.Icon + " " + title
	}

	var b strings.Builder
	b.WriteString(insight.Message)

	recs := insight.Recommendations
	if len(recs) > maxRecommended {
		recs = recs[:maxRecommended]
	}
	if len(recs) > 0 {
		b.WriteString("\n\nTop recommendations:\n")
		for i, r := range recs {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("• ")
			b.WriteString(r)
		}
	}

	timeout := Timeout(insight.Level)

	return Notification{
		Status:    insight.Status,
		Level:     insight.Level,
		Title:     truncate(title, MaxTitleLength),
		Message:   truncate(b.String(), MaxMessageLength),
		Timeout:   timeout,
		TimeoutMs: timeout.Milliseconds(),
		Timestamp: now,
	}
}

// truncate cuts s to max runes, ending in an ellipsis when shortened.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}

	return string(r[:max-len(ellipsis)]) + ellipsis
}
