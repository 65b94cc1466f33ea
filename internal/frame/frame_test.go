package frame

import (
	"context"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/blinktrack/internal/ear"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openLine = `{"ts":1000,"left":[[0,0],[10,-4.5],[20,-4.5],[30,0],[20,4.5],[10,4.5]],"right":[[0,0],[10,-4.5],[20,-4.5],[30,0],[20,4.5],[10,4.5]]}`

var epoch = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return epoch }

func TestReplaySourceRebasesTimestamps(t *testing.T) {
	input := strings.Join([]string{
		openLine,
		"",
		`{"ts":1033,"visible":false}`,
		`{"ts":1066,"visible":true,"eyes":1}`,
	}, "\n")

	src := NewReplaySource(strings.NewReader(input), WithClock(fixedClock))
	ctx := context.Background()

	f, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, epoch, f.Timestamp)

	f, err = src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq)
	assert.Equal(t, epoch.Add(33*time.Millisecond), f.Timestamp)

	f, err = src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(66*time.Millisecond), f.Timestamp)

	_, err = src.Read(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSourceClosed))
	require.NoError(t, src.Close())
}

func TestReplaySourceMalformedLine(t *testing.T) {
	src := NewReplaySource(strings.NewReader("{not json}\n" + openLine))
	ctx := context.Background()

	_, err := src.Read(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadFrame))

	_, err = src.Read(ctx)
	require.NoError(t, err, "a bad line does not end the stream")
}

func TestReplaySourceRealtimePacing(t *testing.T) {
	var slept []time.Duration
	src := NewReplaySource(strings.NewReader(`{"ts":0}`+"\n"+`{"ts":40}`+"\n"+`{"ts":40}`), WithRealtime(true))
	src.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	for i := 0; i < 3; i++ {
		_, err := src.Read(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []time.Duration{40 * time.Millisecond}, slept)
}

func TestReplaySourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReplaySource(strings.NewReader(openLine)).Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenReplayMissingFile(t *testing.T) {
	_, err := OpenReplay("/nonexistent/blinks.jsonl")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrOpenSource))
}

func TestSampleExtractor(t *testing.T) {
	src := NewReplaySource(strings.NewReader(openLine + "\n" + `{"ts":1}`))
	ctx := context.Background()

	f, _ := src.Read(ctx)
	left, right, ok := SampleExtractor{}.Process(f)
	require.True(t, ok)
	assert.InDelta(t, 0.3, ear.FrameRatio(left, right), 1e-9)

	f, _ = src.Read(ctx)
	_, _, ok = SampleExtractor{}.Process(f)
	assert.False(t, ok)
}

func TestSampleClassifier(t *testing.T) {
	visible, hidden := true, false
	c := SampleClassifier{}

	v, n := c.Detect(Frame{Sample: Sample{Visible: &visible}})
	assert.True(t, v)
	assert.Equal(t, 2, n)

	v, n = c.Detect(Frame{Sample: Sample{Visible: &visible, Eyes: 1}})
	assert.True(t, v)
	assert.Equal(t, 1, n)

	v, n = c.Detect(Frame{Sample: Sample{Visible: &hidden, Eyes: 2}})
	assert.False(t, v)
	assert.Equal(t, 0, n)

	v, _ = c.Detect(Frame{})
	assert.False(t, v, "no landmarks and no flag")

	src := NewReplaySource(strings.NewReader(openLine))
	f, _ := src.Read(context.Background())
	v, n = c.Detect(f)
	assert.True(t, v)
	assert.Equal(t, 2, n)
}
