package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/blinktrack/internal/config"
	"codeberg.org/mutker/blinktrack/internal/detector"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"codeberg.org/mutker/blinktrack/internal/health"
	"codeberg.org/mutker/blinktrack/internal/session"
	"codeberg.org/mutker/blinktrack/internal/store"
	"codeberg.org/mutker/blinktrack/internal/tracker"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fe = errors.New()

type fakeController struct {
	running  bool
	paused   bool
	settings detector.Settings
	bpm      float64
	updates  []tracker.SettingsUpdate
}

func (c *fakeController) Start(context.Context) error {
	if c.running {
		return fe.New(errors.ErrAlreadyRunning)
	}
	c.running = true
	return nil
}

func (c *fakeController) Pause() error {
	if !c.running {
		return fe.New(errors.ErrNotRunning)
	}
	c.paused = true
	return nil
}

func (c *fakeController) Resume() error {
	if !c.running {
		return fe.New(errors.ErrNotRunning)
	}
	c.paused = false
	return nil
}

func (c *fakeController) Stop(context.Context) (session.Summary, error) {
	if !c.running {
		return session.Summary{}, fe.New(errors.ErrNotRunning)
	}
	c.running = false
	return session.Summary{SessionID: 7, Blinks: 30, Duration: 2 * time.Minute}, nil
}

func (c *fakeController) Status() tracker.Status {
	st := tracker.Status{State: tracker.StateStopped, Mode: config.ModeEAR, Settings: c.settings}
	if c.running {
		st.State = tracker.StateRunning
		if c.paused {
			st.State = tracker.StatePaused
		}
	}
	st.Stats.Running = c.running
	st.Stats.BlinksPerMinute = c.bpm
	return st
}

func (c *fakeController) Settings() detector.Settings { return c.settings }

func (c *fakeController) AutoStart() bool { return false }

func (c *fakeController) UpdateSettings(_ context.Context, u tracker.SettingsUpdate) (detector.Settings, error) {
	if u.Threshold != nil && (*u.Threshold <= 0 || *u.Threshold >= 1) {
		return c.settings, fe.WithData(errors.ErrInvalidThreshold, *u.Threshold)
	}
	c.updates = append(c.updates, u)
	if u.Threshold != nil {
		c.settings.Threshold = *u.Threshold
	}
	return c.settings, nil
}

func (c *fakeController) CurrentInsight() (health.Insight, bool) {
	if !c.running {
		return health.Insight{}, false
	}
	return health.Analyze(c.bpm, 10*time.Minute)
}

type fakeStats struct {
	day time.Time
}

func (f *fakeStats) DailyStats(_ context.Context, day time.Time) (store.DailyStats, error) {
	f.day = day
	return store.DailyStats{Date: day.Format(dateLayout), TotalBlinks: 42, HourlyDistribution: map[int]int{9: 42}}, nil
}

func (f *fakeStats) WeeklyStats(_ context.Context, day time.Time) ([]store.DailyStats, error) {
	return make([]store.DailyStats, 7), nil
}

func (f *fakeStats) RecentSessions(context.Context, int) ([]store.SessionRecord, error) {
	return nil, nil
}

func (f *fakeStats) Summary(context.Context, time.Time) (store.Summary, error) {
	return store.Summary{}, fe.New(errors.ErrQueryStore)
}

func newTestServer() (*Server, *fakeController, *fakeStats) {
	ctrl := &fakeController{settings: detector.Settings{Threshold: 0.25, ConsecutiveFrames: 1}}
	stats := &fakeStats{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("blinktrack_blinks_total 0\n"))
	})
	s := NewServer("localhost:0", ctrl, stats, NewHub(nil), metrics, nil)
	s.now = func() time.Time { return time.Date(2024, 3, 6, 12, 0, 0, 0, time.Local) }
	return s, ctrl, stats
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestTrackingLifecycle(t *testing.T) {
	s, _, _ := newTestServer()
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/tracking/pause", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/tracking/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st tracker.Status
	decode(t, rec, &st)
	assert.Equal(t, tracker.StateRunning, st.State)

	rec = do(t, h, http.MethodPost, "/api/tracking/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	var er errorResponse
	decode(t, rec, &er)
	assert.Equal(t, errors.ErrAlreadyRunning, er.Code)

	rec = do(t, h, http.MethodPost, "/api/tracking/pause", "")
	decode(t, rec, &st)
	assert.Equal(t, tracker.StatePaused, st.State)

	rec = do(t, h, http.MethodPost, "/api/tracking/resume", "")
	decode(t, rec, &st)
	assert.Equal(t, tracker.StateRunning, st.State)

	rec = do(t, h, http.MethodPost, "/api/tracking/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stop struct {
		Summary         map[string]any `json:"summary"`
		DurationSeconds int            `json:"duration_seconds"`
		BlinksPerMinute float64        `json:"blinks_per_minute"`
	}
	decode(t, rec, &stop)
	assert.Equal(t, 120, stop.DurationSeconds)
	assert.InDelta(t, 15.0, stop.BlinksPerMinute, 1e-9)
	assert.Equal(t, float64(30), stop.Summary["blinks"])
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer()
	rec := do(t, s.Handler(), http.MethodGet, "/api/tracking/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatistics(t *testing.T) {
	s, _, stats := newTestServer()
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/statistics/daily?date=2024-02-29", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var daily store.DailyStats
	decode(t, rec, &daily)
	assert.Equal(t, "2024-02-29", daily.Date)
	assert.Equal(t, 42, daily.TotalBlinks)

	rec = do(t, h, http.MethodGet, "/api/statistics/daily", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03-06", stats.day.Format(dateLayout))

	rec = do(t, h, http.MethodGet, "/api/statistics/daily?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/statistics/weekly", "")
	var week []store.DailyStats
	decode(t, rec, &week)
	assert.Len(t, week, 7)

	rec = do(t, h, http.MethodGet, "/api/statistics/summary", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSessions(t *testing.T) {
	s, _, _ := newTestServer()
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/sessions?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	for _, q := range []string{"limit=0", "limit=1000", "limit=abc"} {
		rec = do(t, h, http.MethodGet, "/api/sessions?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestSettings(t *testing.T) {
	s, ctrl, _ := newTestServer()
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decode(t, rec, &got)
	assert.Equal(t, 0.25, got["ear_threshold"])
	assert.Equal(t, false, got["auto_start"])

	rec = do(t, h, http.MethodPost, "/api/settings", `{"ear_threshold": 0.2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Equal(t, 0.2, got["ear_threshold"])

	rec = do(t, h, http.MethodPost, "/api/settings", `{"ear_threshold": 1.2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/settings", `{"threshold": 0.2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Len(t, ctrl.updates, 1)
}

func TestHealthRoutes(t *testing.T) {
	s, ctrl, _ := newTestServer()
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/health/insight", "")
	assert.JSONEq(t, `{"has_insight": false, "insight": null}`, rec.Body.String())

	ctrl.running = true
	ctrl.bpm = 10
	rec = do(t, h, http.MethodGet, "/api/health/insight", "")
	var ins struct {
		HasInsight bool           `json:"has_insight"`
		Insight    health.Insight `json:"insight"`
	}
	decode(t, rec, &ins)
	assert.True(t, ins.HasInsight)
	assert.Equal(t, health.StatusWarning, ins.Insight.Status)

	rec = do(t, h, http.MethodGet, "/api/health/interpretation", "")
	var in health.Interpretation
	decode(t, rec, &in)
	assert.Equal(t, "Below Normal", in.Category)

	rec = do(t, h, http.MethodGet, "/api/health/interpretation?bpm=15", "")
	decode(t, rec, &in)
	assert.Equal(t, "Normal", in.Category)

	for _, bad := range []string{"-1", "NaN", "Inf", "-Inf", "fast"} {
		rec = do(t, h, http.MethodGet, "/api/health/interpretation?bpm="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	rec = do(t, h, http.MethodGet, "/api/health/tips", "")
	var tips []health.Tip
	decode(t, rec, &tips)
	assert.Len(t, tips, len(health.Tips()))

	rec = do(t, h, http.MethodGet, "/api/health/disclaimer", "")
	assert.Contains(t, rec.Body.String(), "MEDICAL DISCLAIMER")
}

func TestMetricsRoute(t *testing.T) {
	s, _, _ := newTestServer()
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), "blinktrack_blinks_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(errors.ErrNotRunning))
	assert.Equal(t, http.StatusBadRequest, statusFor(errors.ErrInvalidConsecutiveFrames))
	assert.Equal(t, http.StatusNotImplemented, statusFor(errors.ErrNotSupported))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocketHub(t *testing.T) {
	s, _, _ := newTestServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	welcome := readMessage(t, conn)
	assert.Equal(t, MessageWelcome, welcome.Type)
	assert.NotEmpty(t, welcome.ClientID)

	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	s.hub.Broadcast(tracker.MessageBlink, tracker.BlinkPayload{SessionBlinks: 3})
	msg := readMessage(t, conn)
	assert.Equal(t, tracker.MessageBlink, msg.Type)
	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), payload["session_blinks"])

	require.NoError(t, conn.WriteJSON(Message{Type: MessagePing}))
	pong := readMessage(t, conn)
	assert.Equal(t, MessagePong, pong.Type)
	assert.Equal(t, welcome.ClientID, pong.ClientID)

	conn.Close()
	require.Eventually(t, func() bool { return s.hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubCloseRejectsNewClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Close()
	hub.Broadcast("status_update", nil)
	assert.Zero(t, hub.Clients())
	assert.False(t, hub.register(&client{id: "x", send: make(chan Message, 1)}))
}
