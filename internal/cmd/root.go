package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/actbridge/actbridge/internal/config"
	"github.com/actbridge/actbridge/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "actbridge",
	Short: "Host a long-lived runtime behind a lifecycle bridge",
	Long: `actbridge hosts a long-lived runtime (simulated, or a child process) and
forwards host lifecycle events, intents, permission results and battery
status to it through a lifecycle bridge.

Drive the bridge with a YAML or TOML script, interactively in the console,
or by piping console commands on stdin.`,
	SilenceUsage: true,
}

// Execute runs the root command. Cancelling ctx stops long-running commands.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/actbridge/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-dir", "", "write logs to actbridge.log in this directory instead of stderr")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.dir", rootCmd.PersistentFlags().Lookup("log-dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	// e.g. ACTBRIDGE_RUNTIME_KIND for runtime.kind
	config.BindEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLogger(logging.Options{
		Dir:   cfg.Logging.Dir,
		Level: cfg.Logging.Level,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	})
}
