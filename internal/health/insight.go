// Package health maps blink rate and session length to eye health insights.
package health

import (
	"fmt"
	"time"

	"codeberg.org/mutker/blinktrack/internal/errors"
)

var errFactory = errors.New()

// Blink rate bands in blinks per minute, and session length limits.
const (
	VeryLowRate  = 8.0
	LowRate      = 12.0
	HighRate     = 20.0
	VeryHighRate = 30.0

	BreakInterval     = 60 * time.Minute
	MaxContinuousWork = 120 * time.Minute
)

// Level orders insight severity.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelAlert
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "WARNING"
	case LevelAlert:
		return "ALERT"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "INFO"
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "INFO":
		*l = LevelInfo
	case "WARNING":
		*l = LevelWarning
	case "ALERT":
		*l = LevelAlert
	case "CRITICAL":
		*l = LevelCritical
	default:
		return errFactory.WithMessage(errors.ErrInvalidArgument, fmt.Sprintf("unknown insight level %q", text))
	}

	return nil
}

// Status tags, also used as cooldown keys.
const (
	StatusCritical      = "critical"
	StatusWarning       = "warning"
	StatusAlert         = "alert"
	StatusElevated      = "elevated"
	StatusExtendedWork  = "extended_work"
	StatusBreakReminder = "break_reminder"
)

type Insight struct {
	Status          string   `json:"status"`
	Level           Level    `json:"level"`
	Title           string   `json:"title"`
	Message         string   `json:"message"`
	Recommendations []string `json:"recommendations"`
	MedicalNote     string   `json:"medical_note"`
	Icon            string   `json:"icon"`
}

// Analyze evaluates the rules in order and returns the first match.
// Rate rules always take precedence over session length rules.
func Analyze(bpm float64, duration time.Duration) (Insight, bool) {
	minutes := duration.Minutes()

	switch {
	case bpm > 0 && bpm < VeryLowRate:
		return severelyLow(bpm), true
	case bpm > 0 && bpm < LowRate:
		return low(bpm), true
	case bpm > VeryHighRate:
		return veryHigh(bpm), true
	case bpm > HighRate:
		return elevated(bpm), true
	case duration >= MaxContinuousWork:
		return extendedWork(minutes), true
	case duration >= BreakInterval:
		return breakReminder(minutes), true
	}

	return Insight{}, false
}

func severelyLow(bpm float64) Insight {
	return Insight{
		Status: StatusCritical,
		Level:  LevelCritical,
		Title:  "Severely Reduced Blink Rate",
		Message: fmt.Sprintf("Your blink rate is %.1f per minute, significantly below normal (12-20 BPM). "+
			"This is commonly associated with intense screen use.", bpm),
		Recommendations: []string{
			"⚠️ Take an immediate break from the screen",
			"💧 Use artificial tears or lubricating eye drops",
			"👀 Practice conscious blinking exercises",
			"🏥 Consider consulting an eye care professional if symptoms persist",
			"💻 Reduce screen brightness and increase text size",
			"🌡️ Check room humidity (aim for 30-50%)",
		},
		MedicalNote: "Studies show that blink rate can decrease by up to 60% during computer use, " +
			"leading to dry eye syndrome (Tsubota & Nakamori, 1993).",
		Icon: "🚨",
	}
}

func low(bpm float64) Insight {
	return Insight{
		Status: StatusWarning,
		Level:  LevelWarning,
		Title:  "Reduced Blink Rate Detected",
		Message: fmt.Sprintf("Your blink rate is %.1f per minute, below normal (12-20 BPM). "+
			"This may indicate digital eye strain.", bpm),
		Recommendations: []string{
			"😌 Take a 20-second break every 20 minutes",
			"💧 Blink consciously and completely",
			"📏 Follow the 20-20-20 rule",
			"💻 Position screen 20-26 inches from eyes",
			"🌊 Stay hydrated - drink water regularly",
		},
		MedicalNote: "Normal spontaneous blink rate ranges from 12-20 blinks per minute " +
			"(Patel et al., 2011). Reduced blinking can lead to tear film instability.",
		Icon: "⚠️",
	}
}

func veryHigh(bpm float64) Insight {
	return Insight{
		Status: StatusAlert,
		Level:  LevelAlert,
		Title:  "Excessive Blink Rate Detected",
		Message: fmt.Sprintf("Your blink rate is %.1f per minute, significantly above normal (12-20 BPM). "+
			"This may indicate eye irritation or fatigue.", bpm),
		Recommendations: []string{
			"🛑 Take an immediate break from the screen",
			"💧 Check if eyes feel dry or irritated",
			"🌡️ Ensure proper lighting (avoid glare)",
			"🧹 Check for environmental irritants (dust, smoke, dry air)",
			"😎 Consider using blue light filtering glasses",
			"🏥 If persistent, consult an eye care professional",
		},
		MedicalNote: "Excessive blinking can be caused by dry eyes, eye irritation, allergies, " +
			"or eye strain (Bentivoglio et al., 1997).",
		Icon: "⚡",
	}
}

func elevated(bpm float64) Insight {
	return Insight{
		Status: StatusElevated,
		Level:  LevelInfo,
		Title:  "Elevated Blink Rate",
		Message: fmt.Sprintf("Your blink rate is %.1f per minute, slightly above normal (12-20 BPM). "+
			"This could indicate mild eye fatigue.", bpm),
		Recommendations: []string{
			"😌 Take short breaks periodically",
			"💧 Ensure adequate hydration",
			"🌡️ Check room temperature and humidity",
			"💻 Adjust screen position and brightness",
		},
		MedicalNote: "Slightly elevated blink rates may occur during tasks requiring concentration " +
			"or in response to environmental factors.",
		Icon: "📊",
	}
}

func extendedWork(minutes float64) Insight {
	return Insight{
		Status: StatusExtendedWork,
		Level:  LevelCritical,
		Title:  "Extended Screen Time Alert",
		Message: fmt.Sprintf("You've been working for %.0f minutes without a break. "+
			"Extended screen time increases risk of eye strain.", minutes),
		Recommendations: []string{
			"🚨 TAKE A BREAK NOW - You've exceeded recommended continuous screen time",
			"🚶 Stand up, walk around for 5-10 minutes",
			"👀 Give your eyes a complete rest from screens",
			"💧 Hydrate and rest your eyes",
		},
		MedicalNote: "Prolonged screen time without breaks significantly increases the risk of " +
			"computer vision syndrome (Rosenfield, 2016).",
		Icon: "🛑",
	}
}

func breakReminder(minutes float64) Insight {
	return Insight{
		Status:  StatusBreakReminder,
		Level:   LevelInfo,
		Title:   "Break Reminder",
		Message: fmt.Sprintf("You've been working for %.0f minutes. Time for a break!", minutes),
		Recommendations: []string{
			"⏰ Take a 5-10 minute break",
			"🚶 Stand up and stretch",
			"👀 Look at distant objects",
			"💧 Drink some water",
		},
		MedicalNote: "Regular breaks help prevent eye strain and maintain productivity.",
		Icon:        "⏰",
	}
}
