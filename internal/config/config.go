package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete actbridge configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Power   PowerConfig   `mapstructure:"power"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
}

// LoggingConfig controls the structured log output
type LoggingConfig struct {
	// Level is the minimum level written: debug, info, warn or error
	Level string `mapstructure:"level"`
	// Dir is where actbridge.log is written. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is how many rotated files are kept
	MaxBackups int `mapstructure:"max_backups"`
}

// RuntimeConfig selects and configures the hosted runtime
type RuntimeConfig struct {
	// Kind is "sim" for the in-process simulation or "process" for a child process
	Kind string `mapstructure:"kind"`
	// Command is the child command line when Kind is "process"
	Command []string `mapstructure:"command"`
	// ReadyAfter delays readiness of the simulated runtime
	ReadyAfter time.Duration `mapstructure:"ready_after"`
	// FailStart makes the simulated runtime return without becoming ready
	FailStart bool `mapstructure:"fail_start"`
	// ExitCode is what the simulated runtime returns from Start
	ExitCode int `mapstructure:"exit_code"`
}

// PowerConfig selects where battery broadcasts come from
type PowerConfig struct {
	// Source is "sysfs" to read the machine's battery or "manual" for host-fed broadcasts
	Source string `mapstructure:"source"`
	// SysfsRoot is the power_supply directory read by the sysfs source
	SysfsRoot string `mapstructure:"sysfs_root"`
	// PollInterval is how often the sysfs source re-reads the battery (0 = watch only)
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// BridgeConfig controls bridge construction
type BridgeConfig struct {
	// HandoffTimeout bounds the wait for the runtime handle (0 = wait forever)
	HandoffTimeout time.Duration `mapstructure:"handoff_timeout"`
}

// Runtime kinds
const (
	RuntimeSim     = "sim"
	RuntimeProcess = "process"
)

// Power sources
const (
	PowerSysfs  = "sysfs"
	PowerManual = "manual"
)

// EnvPrefix is the prefix for environment overrides, e.g. ACTBRIDGE_LOGGING_LEVEL
const EnvPrefix = "ACTBRIDGE"

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Runtime: RuntimeConfig{
			Kind:       RuntimeSim,
			Command:    []string{},
			ReadyAfter: 0,
			FailStart:  false,
			ExitCode:   0,
		},
		Power: PowerConfig{
			Source:       PowerManual,
			SysfsRoot:    "/sys/class/power_supply",
			PollInterval: 30 * time.Second,
		},
		Bridge: BridgeConfig{
			HandoffTimeout: 0,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Runtime defaults
	viper.SetDefault("runtime.kind", defaults.Runtime.Kind)
	viper.SetDefault("runtime.command", defaults.Runtime.Command)
	viper.SetDefault("runtime.ready_after", defaults.Runtime.ReadyAfter)
	viper.SetDefault("runtime.fail_start", defaults.Runtime.FailStart)
	viper.SetDefault("runtime.exit_code", defaults.Runtime.ExitCode)

	// Power defaults
	viper.SetDefault("power.source", defaults.Power.Source)
	viper.SetDefault("power.sysfs_root", defaults.Power.SysfsRoot)
	viper.SetDefault("power.poll_interval", defaults.Power.PollInterval)

	// Bridge defaults
	viper.SetDefault("bridge.handoff_timeout", defaults.Bridge.HandoffTimeout)
}

// BindEnv enables ACTBRIDGE_* environment overrides for every config key
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Settings returns the configuration as nested maps keyed like the config
// file, with durations rendered as strings, ready for YAML output
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"logging": map[string]any{
			"level":       c.Logging.Level,
			"dir":         c.Logging.Dir,
			"max_size_mb": c.Logging.MaxSizeMB,
			"max_backups": c.Logging.MaxBackups,
		},
		"runtime": map[string]any{
			"kind":        c.Runtime.Kind,
			"command":     c.Runtime.Command,
			"ready_after": c.Runtime.ReadyAfter.String(),
			"fail_start":  c.Runtime.FailStart,
			"exit_code":   c.Runtime.ExitCode,
		},
		"power": map[string]any{
			"source":        c.Power.Source,
			"sysfs_root":    c.Power.SysfsRoot,
			"poll_interval": c.Power.PollInterval.String(),
		},
		"bridge": map[string]any{
			"handoff_timeout": c.Bridge.HandoffTimeout.String(),
		},
	}
}

// Get returns the current configuration, falling back to defaults when it
// cannot be loaded
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "actbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".actbridge"
	}
	return filepath.Join(home, ".config", "actbridge")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
