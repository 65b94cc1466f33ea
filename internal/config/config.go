package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/blinktrack/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel     = LogLevelInfo
	DefaultEnvPrefix    = "BLINKTRACK"
	DefaultConfigName   = "blinktrack"
	DefaultEARThreshold = 0.25

	DefaultConsecutiveFrames         = 1
	DefaultPresenceConsecutiveFrames = 2
	MinConsecutiveFrames             = 1
	MaxConsecutiveFrames             = 10

	DefaultSmoothingWindow = 3
	DefaultBaselineWindow  = 30
	DefaultMaxFailedReads  = 30
	DefaultStatusEvery     = 30
)

var errFactory = errors.New()

type Config struct {
	LogLevel  LogLevel        `mapstructure:"log_level"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Health    HealthConfig    `mapstructure:"health"`
	Source    SourceConfig    `mapstructure:"source"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type DetectorConfig struct {
	Mode                      Mode    `mapstructure:"mode"`
	EARThreshold              float64 `mapstructure:"ear_threshold"`
	ConsecutiveFrames         int     `mapstructure:"consecutive_frames"`
	PresenceConsecutiveFrames int     `mapstructure:"presence_consecutive_frames"`
	GlassesMode               bool    `mapstructure:"glasses_mode"`
	AdaptiveThreshold         bool    `mapstructure:"adaptive_threshold"`
	SmoothingWindow           int     `mapstructure:"smoothing_window"`
	BaselineWindow            int     `mapstructure:"baseline_window"`
	AutoStart                 bool    `mapstructure:"auto_start"`
}

type HealthConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	Warmup        time.Duration `mapstructure:"warmup"`
}

type SourceConfig struct {
	Kind           SourceKind    `mapstructure:"kind"`
	Path           string        `mapstructure:"path"`
	Realtime       bool          `mapstructure:"realtime"`
	NATSURL        string        `mapstructure:"nats_url"`
	Subject        string        `mapstructure:"subject"`
	MaxFailedReads int           `mapstructure:"max_failed_reads"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
}

type DatabaseConfig struct {
	Path          string        `mapstructure:"path"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	RetentionDays int           `mapstructure:"retention_days"`
}

type DashboardConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Addr        string `mapstructure:"addr"`
	StatusEvery int    `mapstructure:"status_every"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type NotifyConfig struct {
	NATSSubject string `mapstructure:"nats_subject"`
}

// Load reads configuration from defaults, the config file, the environment
// and command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	o := &options{
		envPrefix: DefaultEnvPrefix,
		dotEnv:    ".env",
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	if !o.argsSet {
		o.args = os.Args[1:]
	}

	if o.dotEnv != "" {
		if err := godotenv.Load(o.dotEnv); err != nil && !os.IsNotExist(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o, fs); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, o *options, fs *pflag.FlagSet) error {
	path := o.configPath
	if p, _ := fs.GetString("config"); p != "" {
		path = p
	} else if p := os.Getenv(o.envPrefix + "_CONFIG"); p != "" {
		path = p
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, DefaultConfigName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}

		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("log_level", string(d.LogLevel))

	v.SetDefault("detector.mode", string(d.Detector.Mode))
	v.SetDefault("detector.ear_threshold", d.Detector.EARThreshold)
	v.SetDefault("detector.consecutive_frames", d.Detector.ConsecutiveFrames)
	v.SetDefault("detector.presence_consecutive_frames", d.Detector.PresenceConsecutiveFrames)
	v.SetDefault("detector.glasses_mode", d.Detector.GlassesMode)
	v.SetDefault("detector.adaptive_threshold", d.Detector.AdaptiveThreshold)
	v.SetDefault("detector.smoothing_window", d.Detector.SmoothingWindow)
	v.SetDefault("detector.baseline_window", d.Detector.BaselineWindow)
	v.SetDefault("detector.auto_start", d.Detector.AutoStart)

	v.SetDefault("health.enabled", d.Health.Enabled)
	v.SetDefault("health.check_interval", d.Health.CheckInterval)
	v.SetDefault("health.cooldown", d.Health.Cooldown)
	v.SetDefault("health.warmup", d.Health.Warmup)

	v.SetDefault("source.kind", string(d.Source.Kind))
	v.SetDefault("source.path", d.Source.Path)
	v.SetDefault("source.realtime", d.Source.Realtime)
	v.SetDefault("source.nats_url", d.Source.NATSURL)
	v.SetDefault("source.subject", d.Source.Subject)
	v.SetDefault("source.max_failed_reads", d.Source.MaxFailedReads)
	v.SetDefault("source.read_timeout", d.Source.ReadTimeout)

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.batch_size", d.Database.BatchSize)
	v.SetDefault("database.flush_interval", d.Database.FlushInterval)
	v.SetDefault("database.retention_days", d.Database.RetentionDays)

	v.SetDefault("dashboard.enabled", d.Dashboard.Enabled)
	v.SetDefault("dashboard.addr", d.Dashboard.Addr)
	v.SetDefault("dashboard.status_every", d.Dashboard.StatusEvery)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)

	v.SetDefault("notify.nats_subject", d.Notify.NATSSubject)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("blinktrack", pflag.ContinueOnError)
	fs.String("config", "", "Path to configuration file")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.String("mode", string(ModeEAR), "Detector mode (ear, presence)")
	fs.Float64("threshold", DefaultEARThreshold, "Static EAR threshold")
	fs.Int("consecutive-frames", DefaultConsecutiveFrames, "Closed frames required for a blink")
	fs.Bool("glasses", false, "Enable glasses mode")
	fs.Bool("adaptive", true, "Enable adaptive threshold")
	fs.Bool("auto-start", false, "Start tracking on launch")
	fs.String("source", string(SourceReplay), "Frame source (replay, nats)")
	fs.String("source-path", "-", "Replay file, or - for stdin")
	fs.Bool("realtime", false, "Pace replayed frames by their timestamps")
	fs.String("nats-url", "", "NATS server URL")
	fs.String("db", "", "Path to the sqlite database")
	fs.String("addr", "", "Dashboard listen address")
	fs.Bool("telemetry", false, "Expose prometheus metrics")

	return fs
}

var flagKeys = map[string]string{
	"log-level":          "log_level",
	"mode":               "detector.mode",
	"threshold":          "detector.ear_threshold",
	"consecutive-frames": "detector.consecutive_frames",
	"glasses":            "detector.glasses_mode",
	"adaptive":           "detector.adaptive_threshold",
	"auto-start":         "detector.auto_start",
	"source":             "source.kind",
	"source-path":        "source.path",
	"realtime":           "source.realtime",
	"nats-url":           "source.nats_url",
	"db":                 "database.path",
	"addr":               "dashboard.addr",
	"telemetry":          "telemetry.enabled",
}

// bindFlags binds only flags set on the command line so that flag
// defaults never shadow file or environment values.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})

	return err
}
