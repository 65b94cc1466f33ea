package frame

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/blinktrack/internal/errors"
	"github.com/nats-io/nats.go"
)

const natsBuffer = 256

// Connect dials a NATS server with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrOpenSource, err)
	}

	return nc, nil
}

// NATSSource receives JSON samples published on a subject.
type NATSSource struct {
	sub     *nats.Subscription
	ch      chan *nats.Msg
	timeout time.Duration
	now     func() time.Time
	seq     uint64
}

// NewNATSSource subscribes to subject on nc. Read fails with
// ErrReadFrame when no sample arrives within timeout.
func NewNATSSource(nc *nats.Conn, subject string, timeout time.Duration) (*NATSSource, error) {
	ch := make(chan *nats.Msg, natsBuffer)
	sub, err := nc.ChanSubscribe(subject, ch)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrOpenSource, err)
	}

	if timeout <= 0 {
		timeout = time.Second
	}

	return &NATSSource{sub: sub, ch: ch, timeout: timeout, now: time.Now}, nil
}

func (s *NATSSource) Read(ctx context.Context) (Frame, error) {
	t := time.NewTimer(s.timeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-t.C:
		return Frame{}, errFactory.WithMessage(errors.ErrReadFrame, "no sample received")
	case msg, ok := <-s.ch:
		if !ok {
			return Frame{}, errFactory.New(errors.ErrSourceClosed)
		}

		var sample Sample
		if err := json.Unmarshal(msg.Data, &sample); err != nil {
			return Frame{}, errFactory.Wrap(errors.ErrReadFrame, err)
		}

		ts := s.now()
		if sample.TS > 0 {
			ts = time.UnixMilli(sample.TS)
		}

		return Frame{Seq: atomic.AddUint64(&s.seq, 1), Timestamp: ts, Sample: sample}, nil
	}
}

// Dropped returns the number of samples discarded because the buffer was full.
func (s *NATSSource) Dropped() int {
	n, err := s.sub.Dropped()
	if err != nil {
		return 0
	}

	return n
}

func (s *NATSSource) Close() error {
	return s.sub.Unsubscribe()
}
