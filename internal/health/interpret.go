package health

// Interpretation is a human readable band for a blink rate.
type Interpretation struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// Interpret classifies bpm for display.
func Interpret(bpm float64) Interpretation {
	switch {
	case bpm == 0:
		return Interpretation{"No Data", "Start tracking to see your blink rate", "gray"}
	case bpm < VeryLowRate:
		return Interpretation{"Severely Low", "Significant reduction - immediate action recommended", "red"}
	case bpm < LowRate:
		return Interpretation{"Below Normal", "Reduced blinking - may indicate eye strain", "orange"}
	case bpm <= HighRate:
		return Interpretation{"Normal", "Healthy blink rate", "green"}
	case bpm <= VeryHighRate:
		return Interpretation{"Elevated", "Increased blinking - check for irritation", "yellow"}
	default:
		return Interpretation{"Very High", "Excessive blinking - may need attention", "red"}
	}
}

type Tip struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

// Tips returns general eye health advice.
func Tips() []Tip {
	return []Tip{
		{"20-20-20 Rule", "Every 20 minutes, look at something 20 feet away for 20 seconds", "American Optometric Association recommendation"},
		{"Proper Lighting", "Ensure room lighting is similar to screen brightness", "Rosenfield, M. (2016). Computer vision syndrome"},
		{"Screen Position", "Position screen 20-26 inches from eyes, slightly below eye level", "OSHA guidelines for computer workstation ergonomics"},
		{"Blink Consciously", "Make a conscious effort to blink completely and regularly", "Tsubota & Nakamori (1993). Dry eyes and video display terminals"},
		{"Humidity Control", "Maintain room humidity between 30-50%", "American Academy of Ophthalmology recommendations"},
		{"Regular Eye Exams", "Get comprehensive eye exams annually", "American Academy of Ophthalmology guidelines"},
	}
}

const Disclaimer = `MEDICAL DISCLAIMER

This application is designed for educational and informational purposes only.
It is NOT a substitute for professional medical advice, diagnosis, or treatment.

Key Points:
• The health insights provided are based on general medical literature and research
• Individual health conditions vary significantly
• This tool does not diagnose medical conditions
• Always consult qualified healthcare professionals for medical concerns
• If you experience persistent eye problems, seek professional eye care
• In case of emergency eye conditions, seek immediate medical attention

References:
This application's health recommendations are based on peer-reviewed medical literature
including research from the New England Journal of Medicine, Optometry and Vision Science,
Movement Disorders, and guidelines from the American Academy of Ophthalmology and
American Optometric Association.

Data Privacy:
All blink data and health insights are stored locally on your device.
No health information is transmitted to external servers.

By using this application, you acknowledge that you have read and understood this disclaimer.
`
