package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/actbridge/actbridge/internal/config"
	"github.com/actbridge/actbridge/internal/errors"
	"github.com/actbridge/actbridge/internal/power"
)

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Print the machine's battery status",
	Long: `Read the battery from sysfs and print it in the form delivered to
battery observers: {"charging": <bool>, "percent": <float>}.

A machine without a battery reports {"charging": false, "percent": null}.`,
	RunE: runBattery,
}

var batteryWatch bool

func init() {
	rootCmd.AddCommand(batteryCmd)

	batteryCmd.Flags().BoolVarP(&batteryWatch, "watch", "w", false, "keep printing the status as it changes")
	batteryCmd.Flags().String("root", "", "power_supply directory (default /sys/class/power_supply)")
	_ = viper.BindPFlag("power.sysfs_root", batteryCmd.Flags().Lookup("root"))
}

func runBattery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	source := power.NewSysfsSource(
		power.WithRoot(cfg.Power.SysfsRoot),
		power.WithPollInterval(cfg.Power.PollInterval),
		power.WithSysfsLogger(logger),
	)
	defer func() { _ = source.Close() }()

	out := cmd.OutOrStdout()
	if !batteryWatch {
		b, err := source.Read()
		if err != nil && !errors.Is(err, errors.ErrNoBattery) {
			return err
		}
		fmt.Fprintln(out, power.FromBroadcast(b).JSON())
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	updates := make(chan power.Broadcast, 1)
	initial, err := source.Subscribe(func(b power.Broadcast) {
		select {
		case updates <- b:
		default:
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, power.FromBroadcast(initial).JSON())

	for {
		select {
		case b := <-updates:
			fmt.Fprintln(out, power.FromBroadcast(b).JSON())
		case <-ctx.Done():
			return nil
		}
	}
}
