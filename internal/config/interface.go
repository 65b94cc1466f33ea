package config

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
	dotEnv     string
	args       []string
	argsSet    bool
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "BLINKTRACK"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithDotEnv loads additional environment variables from the given file.
// Missing files are ignored.
func WithDotEnv(path string) Option {
	return func(o *options) error {
		o.dotEnv = path
		return nil
	}
}

// WithArgs parses the given command line arguments instead of os.Args
func WithArgs(args []string) Option {
	return func(o *options) error {
		o.args = args
		o.argsSet = true
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// Mode selects the detector variant used for a tracking session
type Mode string

const (
	ModeEAR      Mode = "ear"
	ModePresence Mode = "presence"
)

// IsValid returns whether the mode names a known detector variant
func (m Mode) IsValid() bool {
	return m == ModeEAR || m == ModePresence
}

// SourceKind selects where frames come from
type SourceKind string

const (
	SourceReplay SourceKind = "replay"
	SourceNATS   SourceKind = "nats"
)

// IsValid returns whether the source kind is known
func (k SourceKind) IsValid() bool {
	return k == SourceReplay || k == SourceNATS
}
