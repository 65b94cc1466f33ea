package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/blinktrack/internal/blink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	total     int
	blinks    []blink.Event
	ended     []int64
	summaries []Summary
	settings  map[string]string
	failAll   bool
}

var errFake = fmt.Errorf("fake failure")

func (f *fakeStore) CreateSession(context.Context, time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return 0, errFake
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeStore) RecordBlink(_ context.Context, _ int64, ev blink.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errFake
	}
	f.blinks = append(f.blinks, ev)
	return nil
}

func (f *fakeStore) EndSession(_ context.Context, id int64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, id)
	return nil
}

func (f *fakeStore) SaveSessionSummary(_ context.Context, s Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errFake
	}
	f.summaries = append(f.summaries, s)
	return nil
}

func (f *fakeStore) TotalBlinkCount(context.Context) (int, error) {
	if f.failAll {
		return 0, errFake
	}
	return f.total, nil
}

func (f *fakeStore) GetSetting(_ context.Context, key, fallback string) (string, error) {
	if v, ok := f.settings[key]; ok {
		return v, nil
	}
	return fallback, nil
}

func (f *fakeStore) SetSetting(_ context.Context, key, value string) error {
	if f.settings == nil {
		f.settings = map[string]string{}
	}
	f.settings[key] = value
	return nil
}

var epoch = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{total: 100}
	a := NewAggregator(store, nil)

	id := a.Start(ctx, epoch)
	assert.Equal(t, int64(1), id)

	for i := 1; i <= 15; i++ {
		a.RecordBlink(ctx, blink.Event{Timestamp: epoch.Add(time.Duration(i) * 4 * time.Second)})
	}
	a.Observe(epoch.Add(60*time.Second), 0.31, 0.32, 0.24)

	s := a.Snapshot()
	assert.True(t, s.Running)
	assert.Equal(t, 15, s.SessionBlinks)
	assert.Equal(t, 115, s.TotalBlinks)
	assert.Equal(t, 60, s.DurationSeconds)
	assert.InDelta(t, 15.0, s.BlinksPerMinute, 1e-9)
	assert.True(t, s.EyesDetected)
	assert.InDelta(t, 0.24, s.ActiveThreshold, 1e-9)
	assert.Len(t, store.blinks, 15)

	summary, ok := a.Stop(ctx, epoch.Add(90*time.Second))
	require.True(t, ok)
	assert.Equal(t, int64(1), summary.SessionID)
	assert.Equal(t, 90*time.Second, summary.Duration)
	assert.Equal(t, 15, summary.Blinks)
	assert.InDelta(t, 10.0, summary.BlinksPerMinute(), 1e-9)
	assert.Equal(t, []int64{1}, store.ended)
	require.Len(t, store.summaries, 1)

	// duration frozen after stop
	a.Tick(epoch.Add(10 * time.Minute))
	s = a.Snapshot()
	assert.False(t, s.Running)
	assert.Equal(t, int64(0), s.SessionID)
	assert.Equal(t, 90, s.DurationSeconds)

	_, ok = a.Stop(ctx, epoch.Add(11*time.Minute))
	assert.False(t, ok)
}

func TestStartResetsSessionCounters(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	a := NewAggregator(store, nil)

	a.Start(ctx, epoch)
	a.RecordBlink(ctx, blink.Event{Timestamp: epoch.Add(time.Second)})
	a.Stop(ctx, epoch.Add(2*time.Second))

	store.total = 1
	a.Start(ctx, epoch.Add(time.Hour))
	s := a.Snapshot()
	assert.Equal(t, 0, s.SessionBlinks)
	assert.Equal(t, 1, s.TotalBlinks)
	assert.Equal(t, 0, s.DurationSeconds)
	assert.Equal(t, 0.0, s.BlinksPerMinute)
}

func TestSnapshotIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a := NewAggregator(&fakeStore{}, nil)
	a.Start(ctx, epoch)
	a.RecordBlink(ctx, blink.Event{Timestamp: epoch.Add(7 * time.Second)})
	a.Observe(epoch.Add(13*time.Second), 0.28, 0.3, 0.22)

	assert.Equal(t, a.Snapshot(), a.Snapshot())
}

func TestEyesDetectedFollowsEAR(t *testing.T) {
	a := NewAggregator(nil, nil)
	a.Start(context.Background(), epoch)

	a.Observe(epoch.Add(time.Second), 0, 0.3, 0.22)
	assert.False(t, a.Snapshot().EyesDetected)

	a.ObservePresence(epoch.Add(2*time.Second), true)
	assert.True(t, a.Snapshot().EyesDetected)
}

func TestPauseResume(t *testing.T) {
	a := NewAggregator(nil, nil)
	a.Start(context.Background(), epoch)

	a.Pause()
	assert.True(t, a.Paused())
	assert.True(t, a.Snapshot().Paused)

	a.Resume()
	assert.False(t, a.Paused())
}

func TestPersistenceFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	a := NewAggregator(&fakeStore{failAll: true}, nil)

	id := a.Start(ctx, epoch)
	assert.Equal(t, int64(0), id)

	a.RecordBlink(ctx, blink.Event{Timestamp: epoch.Add(time.Second)})
	assert.Equal(t, 1, a.Snapshot().SessionBlinks)

	_, ok := a.Stop(ctx, epoch.Add(2*time.Second))
	assert.True(t, ok)
}

func TestBlinksIgnoredWhenStopped(t *testing.T) {
	a := NewAggregator(nil, nil)
	a.RecordBlink(context.Background(), blink.Event{Timestamp: epoch})

	assert.Equal(t, 0, a.Snapshot().SessionBlinks)
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(10, 0))
	assert.Equal(t, 0.0, Rate(10, 500*time.Millisecond))
	assert.InDelta(t, 17.1, Rate(20, 70*time.Second), 1e-9)
	assert.InDelta(t, 60.0, Rate(1, time.Second), 1e-9)
}

func TestConcurrentSnapshot(t *testing.T) {
	ctx := context.Background()
	a := NewAggregator(nil, nil)
	a.Start(ctx, epoch)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s := a.Snapshot()
			assert.LessOrEqual(t, s.SessionBlinks, s.TotalBlinks)
		}
	}()

	for i := 0; i < 1000; i++ {
		a.RecordBlink(ctx, blink.Event{Timestamp: epoch.Add(time.Duration(i) * time.Millisecond)})
	}
	wg.Wait()

	assert.Equal(t, 1000, a.Snapshot().SessionBlinks)
}
