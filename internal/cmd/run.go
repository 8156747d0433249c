package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/actbridge/actbridge/internal/bridge"
	"github.com/actbridge/actbridge/internal/config"
	"github.com/actbridge/actbridge/internal/event"
	"github.com/actbridge/actbridge/internal/host"
	"github.com/actbridge/actbridge/internal/logging"
	"github.com/actbridge/actbridge/internal/power"
	"github.com/actbridge/actbridge/internal/runtime"
	"github.com/actbridge/actbridge/internal/runtime/proc"
	"github.com/actbridge/actbridge/internal/runtime/sim"
	"github.com/actbridge/actbridge/internal/script"
	"github.com/actbridge/actbridge/internal/tui"
)

// exitGrace bounds how long termination waits for the runtime to exit.
const exitGrace = 2 * time.Second

var runCmd = &cobra.Command{
	Use:   "run [-- command args...]",
	Short: "Start the runtime and drive the bridge",
	Long: `Start the configured runtime, construct the lifecycle bridge and drive it.

With --script the steps of a YAML or TOML script are played in order.
Otherwise the interactive console starts when stdin is a terminal, and
console commands are read line by line from stdin when it is not.

Arguments after -- select the process runtime with that command line.

Examples:
  actbridge run --script cold-start.yaml
  actbridge run --runtime sim --ready-after 2s
  echo -e "create\nstart\ndestroy" | actbridge run
  actbridge run -- ./my-runtime --verbose`,
	RunE: runRun,
}

var runScript string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runScript, "script", "s", "", "lifecycle script to play (.yaml, .yml or .toml)")
	runCmd.Flags().String("runtime", "", "runtime kind (sim, process)")
	runCmd.Flags().String("power", "", "power source (sysfs, manual)")
	runCmd.Flags().Duration("ready-after", 0, "delay before the simulated runtime becomes ready")
	runCmd.Flags().Bool("fail-start", false, "make the simulated runtime fail to start")
	runCmd.Flags().Duration("handoff-timeout", 0, "give up waiting for the runtime handle after this long (0 waits forever)")
	_ = viper.BindPFlag("runtime.kind", runCmd.Flags().Lookup("runtime"))
	_ = viper.BindPFlag("power.source", runCmd.Flags().Lookup("power"))
	_ = viper.BindPFlag("runtime.ready_after", runCmd.Flags().Lookup("ready-after"))
	_ = viper.BindPFlag("runtime.fail_start", runCmd.Flags().Lookup("fail-start"))
	_ = viper.BindPFlag("bridge.handoff_timeout", runCmd.Flags().Lookup("handoff-timeout"))
}

func runRun(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		viper.Set("runtime.kind", config.RuntimeProcess)
		viper.Set("runtime.command", args)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var s *script.Script
	if runScript != "" {
		if s, err = script.Load(runScript); err != nil {
			return err
		}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	bus := event.NewBus(event.WithBusLogger(logger))

	source, manual := newPowerSource(cfg, logger)
	defer func() { _ = source.Close() }()

	rt := newRuntime(cfg, logger)
	h := host.New(host.WithLogger(logger), host.WithBus(bus))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := newBridge(ctx, cfg, rt, h, bus, source, logger)
	if err != nil {
		return err
	}

	// Hooks run last-registered first, right before the process exits.
	h.OnTerminate(func() { _ = logger.Close() })
	h.OnTerminate(func() { _ = source.Close() })
	h.OnTerminate(func() { awaitRuntime(b, logger) })

	out := cmd.OutOrStdout()
	switch {
	case s != nil:
		err = script.NewRunner(b, runnerOptions(out, manual, logger)...).Run(ctx, s)
	case isTerminal(os.Stdin):
		app := tui.New(b, bus)
		h.OnTerminate(app.Release)
		runner := script.NewRunner(b, runnerOptions(app.Output(), manual, logger)...)
		err = app.Run(ctx, runner)
	default:
		runner := script.NewRunner(b, runnerOptions(out, manual, logger)...)
		err = runConsole(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), runner)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		h.SetExitCode(1)
	}

	if b.Phase() != bridge.PhaseDestroyed {
		b.OnDestroy()
	}
	return nil
}

// newBridge constructs the bridge, bounding the handoff wait by the
// configured timeout.
func newBridge(ctx context.Context, cfg *config.Config, rt runtime.Runtime, h bridge.Host,
	bus *event.Bus, source power.Source, logger *logging.Logger,
) (*bridge.Bridge, error) {
	if timeout := cfg.Bridge.HandoffTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return bridge.New(ctx, rt, h,
		bridge.WithLogger(logger),
		bridge.WithBus(bus),
		bridge.WithPowerSource(source),
	)
}

func newRuntime(cfg *config.Config, logger *logging.Logger) runtime.Runtime {
	if cfg.Runtime.Kind == config.RuntimeProcess {
		return proc.New(cfg.Runtime.Command, proc.WithLogger(logger))
	}
	return sim.New(
		sim.WithReadyAfter(cfg.Runtime.ReadyAfter),
		sim.WithFailStart(cfg.Runtime.FailStart),
		sim.WithExitCode(cfg.Runtime.ExitCode),
		sim.WithLogger(logger),
	)
}

// newPowerSource returns the configured source, and the same source as a
// ManualSource when it is one so battery steps can publish to it.
func newPowerSource(cfg *config.Config, logger *logging.Logger) (power.Source, *power.ManualSource) {
	if cfg.Power.Source == config.PowerSysfs {
		return power.NewSysfsSource(
			power.WithRoot(cfg.Power.SysfsRoot),
			power.WithPollInterval(cfg.Power.PollInterval),
			power.WithSysfsLogger(logger),
		), nil
	}
	manual := power.NewManualSource(nil)
	return manual, manual
}

func runnerOptions(out io.Writer, manual *power.ManualSource, logger *logging.Logger) []script.RunnerOption {
	opts := []script.RunnerOption{script.WithOutput(out), script.WithLogger(logger)}
	if manual != nil {
		opts = append(opts, script.WithSource(manual))
	}
	return opts
}

// runConsole reads console commands from in until EOF, "quit" or "destroy".
// Invalid commands are reported and skipped.
func runConsole(ctx context.Context, in io.Reader, errOut io.Writer, stepper tui.Stepper) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "quit" || line == "destroy" {
			return nil
		}
		st, err := tui.ParseCommand(line)
		if err != nil {
			fmt.Fprintf(errOut, "%s: %v\n", line, err)
			continue
		}
		if err := stepper.Step(ctx, st); err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
	}
	return scanner.Err()
}

// awaitRuntime gives the runtime a moment to exit after destroy.
func awaitRuntime(b *bridge.Bridge, logger *logging.Logger) {
	if b.State() != bridge.StateReady {
		return
	}
	select {
	case <-b.Exited():
		if code, ok := b.ExitCode(); ok {
			logger.Info("runtime finished", "exit_code", code)
		}
	case <-time.After(exitGrace):
		logger.Warn("runtime still running at exit", "grace", exitGrace.String())
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
