package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/linewalk/internal/app"
	"github.com/tphakala/linewalk/internal/buildinfo"
	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/logger"
)

// Command creates the command that serves the line walk API
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the line walk form API",
		Long:  "Start the HTTP API for filling in, saving and exporting line walk through forms.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, settings, info)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					app.GetLogger().Warn("error closing datastore", logger.Error(err))
				}
			}()

			app.GetLogger().Info("starting linewalk",
				logger.String("version", info.GetVersion()),
				logger.String("datastore", settings.Datastore.Backend),
				logger.Bool("mqtt", settings.MQTT.Enabled))
			return a.Run(ctx)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("port", "", "Port the API listens on")
	cmd.Flags().String("datastore", "", "Datastore backend: memory, file, sqlite, mysql or redis")
	cmd.Flags().Bool("mqtt", false, "Publish record events to the configured MQTT broker")

	// Bind flags to the viper settings
	for key, flag := range map[string]string{
		"webserver.port":    "port",
		"datastore.backend": "datastore",
		"mqtt.enabled":      "mqtt",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}
