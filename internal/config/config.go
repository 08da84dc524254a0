package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/powerlog/internal/errors"
)

const (
	DefaultLogLevel = "info"
	DefaultDataDir  = "/var/lib/powerlog"
	DefaultDiskPath = "/"

	// Default coefficients for the power formula, calibrated for a
	// Raspberry Pi class board.
	defaultIdleWatts = 4.5
	defaultCPUWatts  = 7.5
)

// RequiredThresholds lists the threshold keys every config must define.
var RequiredThresholds = []string{"cpu_load", "temperature", "power", "ram_usage", "disk_usage"}

type Config struct {
	BotToken   string
	ChatID     string
	LogLevel   string
	DataDir    string
	DiskPath   string
	Thresholds map[string]float64
	Power      PowerCoefficients

	// Export selects the export run mode: "" (sample), "current", or a
	// YYYY-MM-DD archive date.
	Export string
}

// PowerCoefficients parameterize the power estimation formula. They are a
// calibration policy, not measured values.
type PowerCoefficients struct {
	IdleWatts         float64
	CPUWatts          float64
	NetworkWattsPerMB float64
}

// Load reads configuration from flags, the config file and the
// environment, and validates it. The config path defaults to
// /etc/powerlog.conf and can be overridden with --config or the
// POWERLOG_CONFIG environment variable.
func Load() (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("powerlog", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	export := fs.String("export", "", "Send a log file to the configured chat: 'current' or YYYY-MM-DD")
	fs.ParseErrorsWhitelist.UnknownFlags = true
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	if envPath := os.Getenv("POWERLOG_CONFIG"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}
	if *configPath != "" {
		v.SetConfigFile(*configPath)
	} else {
		v.SetConfigName("powerlog.conf")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("paths.data_dir", DefaultDataDir)
	v.SetDefault("paths.disk", DefaultDiskPath)
	v.SetDefault("power.idle_watts", defaultIdleWatts)
	v.SetDefault("power.cpu_watts", defaultCPUWatts)
	v.SetDefault("power.network_watts_per_mb", 0.0)

	if err := v.ReadInConfig(); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	cfg := &Config{
		LogLevel:   v.GetString("log_level"),
		DataDir:    v.GetString("paths.data_dir"),
		DiskPath:   v.GetString("paths.disk"),
		Thresholds: make(map[string]float64, len(RequiredThresholds)),
		Power: PowerCoefficients{
			IdleWatts:         v.GetFloat64("power.idle_watts"),
			CPUWatts:          v.GetFloat64("power.cpu_watts"),
			NetworkWattsPerMB: v.GetFloat64("power.network_watts_per_mb"),
		},
		Export: *export,
	}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	for _, key := range RequiredThresholds {
		full := "thresholds." + key
		if !v.IsSet(full) {
			return nil, errFactory.WithData(errors.ErrMissingConfig, full)
		}
		cfg.Thresholds[key] = v.GetFloat64(full)
	}

	token, err := resolveSecret(v.GetString("bot_token"), "BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	chatID, err := resolveSecret(v.GetString("chat_id"), "CHAT_ID")
	if err != nil {
		return nil, err
	}
	cfg.BotToken = token
	cfg.ChatID = chatID

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.BotToken == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "bot_token")
	}
	if c.ChatID == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "chat_id")
	}
	if c.DataDir == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "paths.data_dir")
	}

	return nil
}

var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// resolveSecret expands ${VAR} placeholders in value from the environment.
// An empty value falls back to fallbackEnv so credentials can be supplied
// without appearing in the config file at all. A referenced but unset
// variable is a configuration error.
func resolveSecret(value, fallbackEnv string) (string, error) {
	errFactory := errors.New()

	if value == "" {
		value = "${" + fallbackEnv + "}"
	}

	var missing string
	resolved := envPlaceholder.ReplaceAllStringFunc(value, func(match string) string {
		name := envPlaceholder.FindStringSubmatch(match)[1]
		env, ok := os.LookupEnv(name)
		if !ok {
			missing = name
		}
		return env
	})
	if missing != "" {
		return "", errFactory.WithData(errors.ErrMissingEnvVar, missing)
	}

	return resolved, nil
}
