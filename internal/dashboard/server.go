// Package dashboard serves the tracking API, statistics and the live
// websocket feed.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/mutker/blinktrack/internal/detector"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"codeberg.org/mutker/blinktrack/internal/health"
	"codeberg.org/mutker/blinktrack/internal/logger"
	"codeberg.org/mutker/blinktrack/internal/session"
	"codeberg.org/mutker/blinktrack/internal/store"
	"codeberg.org/mutker/blinktrack/internal/tracker"
)

const (
	dateLayout      = "2006-01-02"
	maxSessionLimit = 100
	maxBodySize     = 4096
	shutdownTimeout = 5 * time.Second
)

// Controller is the tracking surface the API drives.
type Controller interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Stop(ctx context.Context) (session.Summary, error)
	Status() tracker.Status
	Settings() detector.Settings
	AutoStart() bool
	UpdateSettings(ctx context.Context, u tracker.SettingsUpdate) (detector.Settings, error)
	CurrentInsight() (health.Insight, bool)
}

// Statistics answers the history queries.
type Statistics interface {
	DailyStats(ctx context.Context, day time.Time) (store.DailyStats, error)
	WeeklyStats(ctx context.Context, day time.Time) ([]store.DailyStats, error)
	RecentSessions(ctx context.Context, limit int) ([]store.SessionRecord, error)
	Summary(ctx context.Context, now time.Time) (store.Summary, error)
}

var _ Controller = (*tracker.Tracker)(nil)
var _ Statistics = (*store.Store)(nil)

type Server struct {
	ctrl    Controller
	stats   Statistics
	hub     *Hub
	metrics http.Handler
	log     logger.Logger
	now     func() time.Time
	srv     *http.Server
}

func NewServer(addr string, ctrl Controller, stats Statistics, hub *Hub, metrics http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}

	s := &Server{
		ctrl:    ctrl,
		stats:   stats,
		hub:     hub,
		metrics: metrics,
		log:     log.With("dashboard"),
		now:     time.Now,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/tracking/start", s.handleStart)
	mux.HandleFunc("POST /api/tracking/pause", s.handlePause)
	mux.HandleFunc("POST /api/tracking/resume", s.handleResume)
	mux.HandleFunc("POST /api/tracking/stop", s.handleStop)

	mux.HandleFunc("GET /api/statistics/daily", s.handleDaily)
	mux.HandleFunc("GET /api/statistics/weekly", s.handleWeekly)
	mux.HandleFunc("GET /api/statistics/summary", s.handleSummary)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings", s.handleUpdateSettings)

	mux.HandleFunc("GET /api/health/insight", s.handleInsight)
	mux.HandleFunc("GET /api/health/interpretation", s.handleInterpretation)
	mux.HandleFunc("GET /api/health/tips", s.handleTips)
	mux.HandleFunc("GET /api/health/disclaimer", s.handleDisclaimer)

	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
	mux.Handle("GET /metrics", s.metrics)

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("Dashboard listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errFactory.Wrap(errors.ErrInitFailed, err)
	case <-ctx.Done():
	}

	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}
	s.log.Info().Msg("Dashboard stopped")

	return nil
}

var errFactory = errors.New()

type errorResponse struct {
	Error string           `json:"error"`
	Code  errors.ErrorCode `json:"code,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("error_code", string(code)).Msg("Request failed")
	}

	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrAlreadyRunning, errors.ErrNotRunning:
		return http.StatusConflict
	case errors.ErrInvalidArgument, errors.ErrInvalidThreshold,
		errors.ErrInvalidConsecutiveFrames, errors.ErrInvalidMode:
		return http.StatusBadRequest
	case errors.ErrNotSupported:
		return http.StatusNotImplemented
	case errors.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(field, value string) error {
	return errFactory.WithData(errors.ErrInvalidArgument, struct {
		Field string
		Value string
	}{
		Field: field,
		Value: value,
	})
}

// dayParam parses ?date=YYYY-MM-DD, defaulting to today.
func (s *Server) dayParam(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return s.now(), nil
	}

	d, err := time.ParseInLocation(dateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, badRequest("date", v)
	}

	return d, nil
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest(name, v)
	}

	return n, nil
}
