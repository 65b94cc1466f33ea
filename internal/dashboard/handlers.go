package dashboard

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"codeberg.org/mutker/blinktrack/internal/detector"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"codeberg.org/mutker/blinktrack/internal/health"
	"codeberg.org/mutker/blinktrack/internal/session"
	"codeberg.org/mutker/blinktrack/internal/store"
	"codeberg.org/mutker/blinktrack/internal/tracker"
)

type stopResponse struct {
	Status          tracker.Status  `json:"status"`
	Summary         session.Summary `json:"summary"`
	DurationSeconds int             `json:"duration_seconds"`
	BlinksPerMinute float64         `json:"blinks_per_minute"`
}

type settingsResponse struct {
	detector.Settings
	AutoStart bool `json:"auto_start"`
}

type insightResponse struct {
	HasInsight bool            `json:"has_insight"`
	Insight    *health.Insight `json:"insight"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.Pause(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.Resume(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sum, err := s.ctrl.Stop(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stopResponse{
		Status:          s.ctrl.Status(),
		Summary:         sum,
		DurationSeconds: int(sum.Duration.Seconds()),
		BlinksPerMinute: sum.BlinksPerMinute(),
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	day, err := s.dayParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	stats, err := s.stats.DailyStats(r.Context(), day)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	day, err := s.dayParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	week, err := s.stats.WeeklyStats(r.Context(), day)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, week)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.stats.Summary(r.Context(), s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 10)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if limit < 1 || limit > maxSessionLimit {
		s.writeError(w, badRequest("limit", strconv.Itoa(limit)))
		return
	}

	sessions, err := s.stats.RecentSessions(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []store.SessionRecord{}
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, settingsResponse{
		Settings:  s.ctrl.Settings(),
		AutoStart: s.ctrl.AutoStart(),
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var u tracker.SettingsUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		s.writeError(w, errFactory.Wrap(errors.ErrInvalidArgument, err))
		return
	}

	settings, err := s.ctrl.UpdateSettings(r.Context(), u)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, settingsResponse{
		Settings:  settings,
		AutoStart: s.ctrl.AutoStart(),
	})
}

func (s *Server) handleInsight(w http.ResponseWriter, _ *http.Request) {
	insight, ok := s.ctrl.CurrentInsight()
	resp := insightResponse{HasInsight: ok}
	if ok {
		resp.Insight = &insight
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInterpretation(w http.ResponseWriter, r *http.Request) {
	bpm := s.ctrl.Status().Stats.BlinksPerMinute
	if v := r.URL.Query().Get("bpm"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			s.writeError(w, badRequest("bpm", v))
			return
		}
		bpm = f
	}

	s.writeJSON(w, http.StatusOK, health.Interpret(bpm))
}

func (s *Server) handleTips(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, health.Tips())
}

func (s *Server) handleDisclaimer(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"disclaimer": health.Disclaimer})
}
