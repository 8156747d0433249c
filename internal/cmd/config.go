package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/actbridge/actbridge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify actbridge configuration",
	Long: `View or modify actbridge configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  actbridge config set runtime.kind process
  actbridge config set power.poll_interval 10s
  actbridge config set logging.level debug

Valid keys:
  logging.level           - debug, info, warn, error
  logging.dir             - directory for actbridge.log (empty for stderr)
  logging.max_size_mb     - rotate the log file at this size
  logging.max_backups     - rotated log files to keep
  runtime.kind            - sim, process
  runtime.ready_after     - readiness delay of the simulated runtime
  runtime.fail_start      - simulated runtime fails to start (true/false)
  runtime.exit_code       - exit code of the simulated runtime
  power.source            - sysfs, manual
  power.sysfs_root        - power_supply directory
  power.poll_interval     - sysfs poll interval (0 to only watch)
  bridge.handoff_timeout  - bound on the wait for the runtime handle`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/actbridge/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg.Settings())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// settableKeys maps every key accepted by config set to its value type.
var settableKeys = map[string]string{
	"logging.level":          "string",
	"logging.dir":            "string",
	"logging.max_size_mb":    "int",
	"logging.max_backups":    "int",
	"runtime.kind":           "string",
	"runtime.ready_after":    "duration",
	"runtime.fail_start":     "bool",
	"runtime.exit_code":      "int",
	"power.source":           "string",
	"power.sysfs_root":       "string",
	"power.poll_interval":    "duration",
	"bridge.handoff_timeout": "duration",
}

// typedConfigValue converts value to the type of key.
func typedConfigValue(key, value string) (any, error) {
	keyType, ok := settableKeys[key]
	if !ok {
		keys := make([]string, 0, len(settableKeys))
		for k := range settableKeys {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return nil, fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(keys, ", "))
	}

	switch keyType {
	case "bool":
		v, err := cast.ToBoolE(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return v, nil
	case "int":
		v, err := cast.ToIntE(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return v, nil
	case "duration":
		v, err := cast.ToDurationE(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 500ms or 2s", key)
		}
		// Stored as text so the file stays readable
		return v.String(), nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := typedConfigValue(key, args[1])
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

// defaultConfigContent is written by config init.
const defaultConfigContent = `# actbridge configuration

logging:
  # Minimum level: debug, info, warn, error
  level: info
  # Directory for actbridge.log; empty logs to stderr
  dir: ""
  # Rotate the log file at this size, keeping max_backups old files
  max_size_mb: 10
  max_backups: 3

runtime:
  # sim runs an in-process simulated runtime; process runs runtime.command
  kind: sim
  # Child command line for the process runtime, e.g. ["./my-runtime", "--verbose"]
  command: []
  # Simulated runtime: delay before it becomes ready
  ready_after: 0s
  # Simulated runtime: return without becoming ready
  fail_start: false
  # Simulated runtime: exit code returned when it stops
  exit_code: 0

power:
  # manual takes battery broadcasts from scripts; sysfs reads this machine's battery
  source: manual
  sysfs_root: /sys/class/power_supply
  # How often sysfs is re-read (0 relies on file watching only)
  poll_interval: 30s

bridge:
  # Give up waiting for the runtime handle after this long (0 waits forever)
  handoff_timeout: 0s
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'actbridge config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize actbridge's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_RUNTIME_KIND)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}
