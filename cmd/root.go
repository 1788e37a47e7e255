package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/linewalk/cmd/notify"
	"github.com/tphakala/linewalk/cmd/records"
	"github.com/tphakala/linewalk/cmd/serve"
	"github.com/tphakala/linewalk/internal/buildinfo"
	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs, so subcommands may keep the pointer.
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "linewalk",
		Short:         "Line walk through inspection service",
		Version:       info.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings, info),
		records.Command(settings),
		notify.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, info, configFile)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(telemetryFlushTimeout)
		_ = logger.Global().Flush()
	}

	return rootCmd
}

// initialize loads the configuration and sets up logging and telemetry.
// It runs after flags are parsed, so bound flags override the config file.
func initialize(settings *conf.Settings, info *buildinfo.Context, configFile string) error {
	loaded, err := conf.LoadFile(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if err := telemetry.InitSentry(&settings.Telemetry, info.GetVersion()); err != nil {
		// Telemetry is optional; keep running without it
		logger.Global().Module("main").Warn("failed to initialize telemetry", logger.Error(err))
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/linewalk, /etc/linewalk)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
