package notify

import (
	"context"
	"encoding/json"
	"time"

	"codeberg.org/mutker/blinktrack/internal/errors"
	"codeberg.org/mutker/blinktrack/internal/health"
	"codeberg.org/mutker/blinktrack/internal/logger"
	"github.com/nats-io/nats.go"
)

var errFactory = errors.New()

var (
	_ health.Notifier = (*LogNotifier)(nil)
	_ health.Notifier = (*NATSNotifier)(nil)
	_ health.Notifier = Multi(nil)
	_ Publisher       = (*nats.Conn)(nil)
)

// LogNotifier writes formatted insights to the log.
type LogNotifier struct {
	log logger.Logger
	now func() time.Time
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Default()
	}

	return &LogNotifier{log: log.With("notify"), now: time.Now}
}

func (n *LogNotifier) Notify(_ context.Context, insight health.Insight) error {
	msg := Format(insight, n.now())

	var ev *logger.LogEvent
	switch insight.Level {
	case health.LevelCritical, health.LevelAlert:
		ev = n.log.Warn()
	default:
		ev = n.log.Info()
	}

	ev.Str("status", msg.Status).
		Stringer("level", msg.Level).
		Str("message", msg.Message).
		Dur("timeout", msg.Timeout).
		Msg(msg.Title)

	return nil
}

// Publisher is the subset of *nats.Conn used to publish alerts.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes formatted insights as JSON.
type NATSNotifier struct {
	pub     Publisher
	subject string
	now     func() time.Time
}

func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{pub: pub, subject: subject, now: time.Now}
}

func (n *NATSNotifier) Notify(ctx context.Context, insight health.Insight) error {
	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(errors.ErrNotify, err)
	}

	data, err := json.Marshal(Format(insight, n.now()))
	if err != nil {
		return errFactory.Wrap(errors.ErrNotify, err)
	}

	if err := n.pub.Publish(n.subject, data); err != nil {
		return errFactory.WithData(errors.ErrNotify, struct {
			Subject string
			Error   string
		}{
			Subject: n.subject,
			Error:   err.Error(),
		})
	}

	return nil
}

// Multi delivers to every notifier and returns the first error.
type Multi []health.Notifier

func (m Multi) Notify(ctx context.Context, insight health.Insight) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, insight); err != nil && first == nil {
			first = err
		}
	}

	return first
}
