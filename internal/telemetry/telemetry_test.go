package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/blinktrack/internal/blink"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledUsesNoop(t *testing.T) {
	c, err := NewService(DefaultConfig())
	require.NoError(t, err)
	_, ok := c.(*noopCollector)
	assert.True(t, ok)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, c.Record(context.Background(), &Snapshot{}))
}

func TestNoopIsUsable(t *testing.T) {
	c := Noop()
	require.NotNil(t, c)

	c.ObserveFrame(true)
	c.ObserveBlink(blink.Event{})
	c.ObserveAlert("critical")
	assert.NoError(t, c.Record(context.Background(), &Snapshot{}))
	assert.NoError(t, c.Close())
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewService(Config{Enabled: true})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidConfig, errors.CodeOf(err))
}

func newEnabled(t *testing.T) *service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Enabled = true
	c, err := NewService(cfg)
	require.NoError(t, err)
	return c.(*service)
}

func TestRecordSetsGauges(t *testing.T) {
	s := newEnabled(t)

	err := s.Record(context.Background(), &Snapshot{
		Timestamp: time.Now(),
		EAR:       EARMetrics{Current: 0.31, Baseline: 0.3, Threshold: 0.22},
		Session: SessionMetrics{
			Blinks:          12,
			BlinksPerMinute: 14.5,
			Duration:        90 * time.Second,
			Running:         true,
		},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.31, testutil.ToFloat64(s.ear), 1e-9)
	assert.InDelta(t, 0.22, testutil.ToFloat64(s.threshold), 1e-9)
	assert.InDelta(t, 12, testutil.ToFloat64(s.sessionBlinks), 1e-9)
	assert.InDelta(t, 90, testutil.ToFloat64(s.sessionSeconds), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(s.tracking), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(s.paused), 1e-9)

	assert.Equal(t, ErrInvalidMetrics, errors.CodeOf(s.Record(context.Background(), nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, ErrOperationTimeout, errors.CodeOf(s.Record(ctx, &Snapshot{})))
}

func TestCountersAndHandler(t *testing.T) {
	s := newEnabled(t)

	s.ObserveFrame(true)
	s.ObserveFrame(true)
	s.ObserveFrame(false)
	s.ObserveBlink(blink.Event{Duration: 120 * time.Millisecond, DurationKnown: true})
	s.ObserveBlink(blink.Event{})
	s.ObserveAlert("warning")

	assert.InDelta(t, 2, testutil.ToFloat64(s.blinks), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(s.alerts.WithLabelValues("warning")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(s.blinkDuration))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "blinktrack_frames_read_total 3")
	assert.Contains(t, string(body), "blinktrack_frames_failed_total 1")
	assert.Contains(t, string(body), "blinktrack_blink_duration_seconds_count 1")
	assert.Contains(t, string(body), `blinktrack_health_alerts_total{status="warning"} 1`)
}
