package frame

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"codeberg.org/mutker/blinktrack/internal/errors"
)

// ReplaySource reads JSON-lines samples from a file or stream.
// Timestamps are rebased onto the wall clock at the first read.
type ReplaySource struct {
	mu       sync.Mutex
	closer   io.Closer
	scanner  *bufio.Scanner
	realtime bool
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	seq     uint64
	base    time.Time
	firstTS int64
	lastTS  int64
}

type ReplayOption func(*ReplaySource)

// WithRealtime paces frames by the gaps between their timestamps.
func WithRealtime(enabled bool) ReplayOption {
	return func(s *ReplaySource) {
		s.realtime = enabled
	}
}

// WithClock overrides the wall clock used for rebasing.
func WithClock(now func() time.Time) ReplayOption {
	return func(s *ReplaySource) {
		s.now = now
	}
}

func NewReplaySource(r io.Reader, opts ...ReplayOption) *ReplaySource {
	s := &ReplaySource{
		now:   time.Now,
		sleep: sleepCtx,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	for _, opt := range opts {
		opt(s)
	}

	s.scanner = bufio.NewScanner(r)
	s.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return s
}

// OpenReplay opens path, or stdin when path is "-".
func OpenReplay(path string, opts ...ReplayOption) (*ReplaySource, error) {
	if path == "" || path == "-" {
		return NewReplaySource(io.NopCloser(os.Stdin), opts...), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrOpenSource, err)
	}

	return NewReplaySource(f, opts...), nil
}

func (s *ReplaySource) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Frame{}, errFactory.Wrap(errors.ErrSourceClosed, err)
			}
			return Frame{}, errFactory.New(errors.ErrSourceClosed)
		}

		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var sample Sample
		if err := json.Unmarshal(line, &sample); err != nil {
			return Frame{}, errFactory.Wrap(errors.ErrReadFrame, err)
		}

		return s.frame(ctx, sample)
	}
}

func (s *ReplaySource) frame(ctx context.Context, sample Sample) (Frame, error) {
	s.seq++

	if s.seq == 1 {
		s.base = s.now()
		s.firstTS = sample.TS
		s.lastTS = sample.TS
	}

	if s.realtime && sample.TS > s.lastTS {
		if err := s.sleep(ctx, time.Duration(sample.TS-s.lastTS)*time.Millisecond); err != nil {
			return Frame{}, err
		}
	}
	if sample.TS > s.lastTS {
		s.lastTS = sample.TS
	}

	ts := s.base.Add(time.Duration(s.lastTS-s.firstTS) * time.Millisecond)

	return Frame{Seq: s.seq, Timestamp: ts, Sample: sample}, nil
}

func (s *ReplaySource) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
