package tracker

import (
	"context"
	"strconv"

	"codeberg.org/mutker/blinktrack/internal/detector"
	"codeberg.org/mutker/blinktrack/internal/logger"
	"codeberg.org/mutker/blinktrack/internal/session"
)

// Persisted setting keys.
const (
	KeyThreshold         = "ear_threshold"
	KeyConsecutiveFrames = "consecutive_frames"
	KeyGlassesMode       = "glasses_mode"
	KeyAdaptiveThreshold = "adaptive_threshold"
	KeyAutoStart         = "auto_start"
)

// SettingsUpdate carries the fields a client wants changed. Nil fields are
// left alone.
type SettingsUpdate struct {
	Threshold         *float64 `json:"ear_threshold,omitempty"`
	ConsecutiveFrames *int     `json:"consecutive_frames,omitempty"`
	GlassesMode       *bool    `json:"glasses_mode,omitempty"`
	AdaptiveThreshold *bool    `json:"adaptive_threshold,omitempty"`
	AutoStart         *bool    `json:"auto_start,omitempty"`
}

// apply returns s with the update's fields set.
func (u SettingsUpdate) apply(s detector.Settings) detector.Settings {
	if u.Threshold != nil {
		s.Threshold = *u.Threshold
	}
	if u.ConsecutiveFrames != nil {
		s.ConsecutiveFrames = *u.ConsecutiveFrames
	}
	if u.GlassesMode != nil {
		s.GlassesMode = *u.GlassesMode
	}
	if u.AdaptiveThreshold != nil {
		s.AdaptiveThreshold = *u.AdaptiveThreshold
	}

	return s
}

func (u SettingsUpdate) values() map[string]string {
	out := make(map[string]string)
	if u.Threshold != nil {
		out[KeyThreshold] = strconv.FormatFloat(*u.Threshold, 'f', -1, 64)
	}
	if u.ConsecutiveFrames != nil {
		out[KeyConsecutiveFrames] = strconv.Itoa(*u.ConsecutiveFrames)
	}
	if u.GlassesMode != nil {
		out[KeyGlassesMode] = strconv.FormatBool(*u.GlassesMode)
	}
	if u.AdaptiveThreshold != nil {
		out[KeyAdaptiveThreshold] = strconv.FormatBool(*u.AdaptiveThreshold)
	}
	if u.AutoStart != nil {
		out[KeyAutoStart] = strconv.FormatBool(*u.AutoStart)
	}

	return out
}

// loadSettings overlays persisted values on s. Unparsable or out of range
// values are logged and skipped.
func loadSettings(ctx context.Context, store session.Persistence, s detector.Settings, autoStart bool, log logger.Logger) (detector.Settings, bool) {
	if store == nil {
		return s, autoStart
	}

	get := func(key string) (string, bool) {
		v, err := store.GetSetting(ctx, key, "")
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to read setting")
			return "", false
		}
		return v, v != ""
	}
	skip := func(key, value string, err error) {
		log.Warn().Err(err).Str("key", key).Str("value", value).Msg("Ignoring persisted setting")
	}

	var u SettingsUpdate
	if v, ok := get(KeyThreshold); ok {
		if f, err := strconv.ParseFloat(v, 64); err != nil {
			skip(KeyThreshold, v, err)
		} else {
			u.Threshold = &f
		}
	}
	if v, ok := get(KeyConsecutiveFrames); ok {
		if n, err := strconv.Atoi(v); err != nil {
			skip(KeyConsecutiveFrames, v, err)
		} else {
			u.ConsecutiveFrames = &n
		}
	}
	if v, ok := get(KeyGlassesMode); ok {
		if b, err := strconv.ParseBool(v); err != nil {
			skip(KeyGlassesMode, v, err)
		} else {
			u.GlassesMode = &b
		}
	}
	if v, ok := get(KeyAdaptiveThreshold); ok {
		if b, err := strconv.ParseBool(v); err != nil {
			skip(KeyAdaptiveThreshold, v, err)
		} else {
			u.AdaptiveThreshold = &b
		}
	}
	if v, ok := get(KeyAutoStart); ok {
		if b, err := strconv.ParseBool(v); err != nil {
			skip(KeyAutoStart, v, err)
		} else {
			autoStart = b
		}
	}

	merged := u.apply(s)
	if err := detector.Validate(merged); err != nil {
		log.Warn().Err(err).Msg("Persisted detector settings rejected, using configuration")
		return s, autoStart
	}

	return merged, autoStart
}
