package telemetry

import "codeberg.org/mutker/blinktrack/internal/config"

const defaultNamespace = "blinktrack"

type Config struct {
	Enabled   bool
	Namespace string
}

func DefaultConfig() Config {
	return Config{
		Namespace: defaultNamespace,
	}
}

func ConfigFrom(c config.TelemetryConfig) Config {
	cfg := DefaultConfig()
	cfg.Enabled = c.Enabled

	return cfg
}

func (c Config) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "telemetry namespace is empty")
	}

	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
