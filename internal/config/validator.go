package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "power.poll_interval")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidRuntimeKinds returns the list of valid runtime kinds
func ValidRuntimeKinds() []string {
	return []string{RuntimeSim, RuntimeProcess}
}

// ValidPowerSources returns the list of valid power sources
func ValidPowerSources() []string {
	return []string{PowerSysfs, PowerManual}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateRuntime()...)
	errors = append(errors, c.validatePower()...)
	errors = append(errors, c.validateBridge()...)

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateRuntime validates the RuntimeConfig
func (c *Config) validateRuntime() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidRuntimeKinds(), c.Runtime.Kind) {
		errors = append(errors, ValidationError{
			Field:   "runtime.kind",
			Value:   c.Runtime.Kind,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidRuntimeKinds(), ", ")),
		})
	}

	if c.Runtime.Kind == RuntimeProcess && len(c.Runtime.Command) == 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.command",
			Value:   c.Runtime.Command,
			Message: "is required when runtime.kind is process",
		})
	}

	if c.Runtime.ReadyAfter < 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.ready_after",
			Value:   c.Runtime.ReadyAfter,
			Message: "must be non-negative",
		})
	}

	if c.Runtime.ExitCode < 0 || c.Runtime.ExitCode > 255 {
		errors = append(errors, ValidationError{
			Field:   "runtime.exit_code",
			Value:   c.Runtime.ExitCode,
			Message: "must be between 0 and 255",
		})
	}

	return errors
}

// validatePower validates the PowerConfig
func (c *Config) validatePower() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidPowerSources(), c.Power.Source) {
		errors = append(errors, ValidationError{
			Field:   "power.source",
			Value:   c.Power.Source,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPowerSources(), ", ")),
		})
	}

	if c.Power.Source == PowerSysfs && c.Power.SysfsRoot == "" {
		errors = append(errors, ValidationError{
			Field:   "power.sysfs_root",
			Value:   c.Power.SysfsRoot,
			Message: "is required when power.source is sysfs",
		})
	}

	// Anything below a second just spins on sysfs
	if c.Power.PollInterval != 0 && c.Power.PollInterval < time.Second {
		errors = append(errors, ValidationError{
			Field:   "power.poll_interval",
			Value:   c.Power.PollInterval,
			Message: "must be 0 or at least 1s",
		})
	}

	return errors
}

// validateBridge validates the BridgeConfig
func (c *Config) validateBridge() []ValidationError {
	var errors []ValidationError

	if c.Bridge.HandoffTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "bridge.handoff_timeout",
			Value:   c.Bridge.HandoffTimeout,
			Message: "must be non-negative (0 waits forever)",
		})
	}

	return errors
}
