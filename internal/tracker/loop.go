package tracker

import (
	"context"
	"time"

	"codeberg.org/mutker/blinktrack/internal/detector"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"codeberg.org/mutker/blinktrack/internal/frame"
	"codeberg.org/mutker/blinktrack/internal/telemetry"
)

func (t *Tracker) run(ctx context.Context, src frame.Source, det detector.Detector, done chan struct{}) {
	defer close(done)
	defer t.finish(det)
	defer func() {
		if err := src.Close(); err != nil {
			t.opts.log.Warn().Err(err).Msg("Failed to close frame source")
		}
	}()

	var (
		failures  int
		frames    uint64
		lastCheck time.Time
	)

	for ctx.Err() == nil {
		f, err := src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.HasCode(err, errors.ErrSourceClosed) {
				t.opts.log.Info().Uint64("frames", frames).Msg("Frame source exhausted")
				return
			}

			failures++
			t.opts.telemetry.ObserveFrame(false)
			if failures > t.maxFailedReads {
				t.opts.log.Error().
					Err(err).
					Int("failed_reads", failures).
					Msg("Too many failed frame reads, stopping tracking")
				return
			}

			t.opts.log.Debug().Err(err).Int("failed_reads", failures).Msg("Frame read failed")
			if !sleepCtx(ctx, readBackoff) {
				return
			}
			continue
		}

		failures = 0
		t.opts.telemetry.ObserveFrame(true)
		det.ProcessFrame(ctx, f)

		frames++
		t.mu.Lock()
		t.frames = frames
		t.mu.Unlock()

		if frames%uint64(t.statusEvery) == 0 {
			t.publishStatus(ctx)
		}

		if frames%progressEvery == 0 {
			stats := det.Stats()
			t.opts.log.Debug().
				Uint64("frames", frames).
				Int("session_blinks", stats.SessionBlinks).
				Float64("blinks_per_minute", stats.BlinksPerMinute).
				Float64("ear", stats.CurrentEAR).
				Float64("threshold", stats.ActiveThreshold).
				Msg("Tracking progress")
		}

		if t.opts.monitor != nil && t.checkInterval > 0 {
			if lastCheck.IsZero() {
				lastCheck = f.Timestamp
			} else if f.Timestamp.Sub(lastCheck) >= t.checkInterval {
				lastCheck = f.Timestamp
				t.checkHealth(ctx, det, f.Timestamp)
			}
		}
	}
}

func (t *Tracker) publishStatus(ctx context.Context) {
	st := t.Status()
	t.opts.broadcaster.Broadcast(MessageStatus, st)

	err := t.opts.telemetry.Record(ctx, &telemetry.Snapshot{
		Timestamp: t.opts.now(),
		EAR: telemetry.EARMetrics{
			Current:   st.Stats.CurrentEAR,
			Baseline:  st.Stats.BaselineEAR,
			Threshold: st.Stats.ActiveThreshold,
		},
		Session: telemetry.SessionMetrics{
			Blinks:          st.Stats.SessionBlinks,
			BlinksPerMinute: st.Stats.BlinksPerMinute,
			Duration:        st.Stats.Duration,
			Running:         st.Stats.Running,
			Paused:          st.Stats.Paused,
		},
	})
	if err != nil {
		t.opts.log.Debug().Err(err).Msg("Failed to record telemetry")
	}
}

func (t *Tracker) checkHealth(ctx context.Context, det detector.Detector, now time.Time) {
	insight, ok := t.opts.monitor.CheckAt(ctx, det.Stats(), now)
	if !ok {
		return
	}

	t.opts.telemetry.ObserveAlert(insight.Status)
	t.opts.broadcaster.Broadcast(MessageHealth, insight)
}

// finish stops the detector, which saves the session summary, and
// publishes the final status.
func (t *Tracker) finish(det detector.Detector) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	sum, ok := det.Stop(ctx)

	t.mu.Lock()
	if ok {
		t.last = sum
		t.hasLast = true
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.cancel = nil
	t.done = nil
	st := t.statusLocked()
	t.mu.Unlock()

	if ok {
		t.opts.log.Info().
			Int64("session_id", sum.SessionID).
			Int("blinks", sum.Blinks).
			Dur("duration", sum.Duration).
			Float64("blinks_per_minute", sum.BlinksPerMinute()).
			Msg("Tracking stopped")
		t.opts.broadcaster.Broadcast(MessageSessionEnded, sum)
	}

	t.opts.broadcaster.Broadcast(MessageStatus, st)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
