// Package app wires the line walk components together from the settings:
// datastore, catalog, notifications, exporter, MQTT events, session and HTTP server.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/linewalk/internal/api"
	"github.com/tphakala/linewalk/internal/buildinfo"
	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/export"
	"github.com/tphakala/linewalk/internal/export/targets"
	"github.com/tphakala/linewalk/internal/inspection"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/mqtt"
	"github.com/tphakala/linewalk/internal/notification"
	"github.com/tphakala/linewalk/internal/observability"
	"github.com/tphakala/linewalk/internal/observability/metrics"
	"github.com/tphakala/linewalk/internal/session"
)

// App holds the wired components of a running service
type App struct {
	Settings *conf.Settings
	Info     *buildinfo.Context

	Metrics   *observability.Metrics // nil when metrics are disabled
	KV        datastore.KV
	Store     *datastore.Store
	Catalog   *inspection.Catalog
	Toasts    *notification.Service
	Exporter  *export.Exporter
	Publisher *mqtt.Publisher // nil when MQTT is disabled
	Session   *session.Session

	log logger.Logger
}

// GetLogger returns the app package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// Store opens the configured key-value backend and the record store over it.
// The caller closes the returned KV.
func Store(ctx context.Context, settings *conf.Settings, m *metrics.DatastoreMetrics, log logger.Logger) (datastore.KV, *datastore.Store, error) {
	kv, err := datastore.NewKV(ctx, &settings.Datastore, log.Module("datastore"))
	if err != nil {
		return nil, nil, err
	}
	kv = datastore.Instrument(kv, settings.Datastore.Backend, m)

	opts := []datastore.StoreOption{
		datastore.WithStrict(settings.Form.Strict),
		datastore.WithMetrics(m),
		datastore.WithLogger(log.Module("datastore")),
	}
	if len(settings.Form.RequiredFields) > 0 {
		opts = append(opts, datastore.WithRequiredFields(settings.Form.RequiredFields))
	}
	return kv, datastore.NewStore(kv, settings.Datastore.Key, opts...), nil
}

// Catalog loads the catalog file from settings, or the built-in catalog when none is set
func Catalog(settings *conf.Settings) (*inspection.Catalog, error) {
	return inspection.LoadCatalog(settings.Catalog.Path)
}

// Targets creates the enabled export targets. A target that fails to
// initialise is logged and skipped.
func Targets(ctx context.Context, settings *conf.Settings, log logger.Logger) []targets.Target {
	var out []targets.Target
	for _, cfg := range settings.Export.Targets {
		if !cfg.Enabled {
			continue
		}
		t, err := targets.New(ctx, cfg, log)
		if err != nil {
			log.Warn("export target disabled",
				logger.String("type", cfg.Type),
				logger.Error(err))
			continue
		}
		out = append(out, t)
	}
	return out
}

// Notifications creates the toast service, forwarding warnings and errors to
// the configured shoutrrr URLs when push is enabled
func Notifications(settings *conf.Settings, m *metrics.HTTPMetrics, log logger.Logger) *notification.Service {
	push := settings.Notification.Push
	opts := []notification.Option{
		notification.WithProviders(notification.NewShoutrrrProvider("push", push.Enabled, push.URLs, push.Timeout)),
		notification.WithMetrics(m),
		notification.WithLogger(log.Module("notification")),
	}
	if push.Timeout > 0 {
		opts = append(opts, notification.WithPushTimeout(push.Timeout))
	}
	return notification.NewService(opts...)
}

// Exporter builds an exporter with the layout, targets and timeout from settings
func Exporter(ctx context.Context, settings *conf.Settings, n export.Notifier, m *metrics.ExportMetrics, log logger.Logger) *export.Exporter {
	opts := []export.Option{
		export.WithOptions(export.OptionsFromSettings(&settings.Export)),
		export.WithPublishTargets(Targets(ctx, settings, log.Module("targets"))...),
		export.WithMetrics(m),
		export.WithLogger(log.Module("export")),
	}
	if settings.Export.Timeout > 0 {
		opts = append(opts, export.WithPublishTimeout(settings.Export.Timeout))
	}
	if n != nil {
		opts = append(opts, export.WithNotifier(n))
	}
	return export.New(opts...)
}

// New wires every component. MQTT connection failures are logged, not returned,
// so the form keeps working while the broker is down.
func New(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) (*App, error) {
	a := &App{
		Settings: settings,
		Info:     info,
		log:      GetLogger(),
	}

	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("error creating metrics: %w", err)
		}
		a.Metrics = m
	}

	kv, store, err := Store(ctx, settings, a.datastoreMetrics(), a.log)
	if err != nil {
		return nil, err
	}
	a.KV, a.Store = kv, store

	if a.Catalog, err = Catalog(settings); err != nil {
		_ = kv.Close()
		return nil, err
	}

	a.Toasts = Notifications(settings, a.httpMetrics(), a.log)

	a.Exporter = Exporter(ctx, settings, a.Toasts, a.exportMetrics(), a.log)

	sessionOpts := []session.Option{
		session.WithNotifier(a.Toasts),
		session.WithMetrics(a.httpMetrics()),
		session.WithLogger(a.log.Module("session")),
	}
	if settings.MQTT.Enabled {
		a.Publisher = a.connectMQTT(ctx)
		sessionOpts = append(sessionOpts, session.WithEvents(a.Publisher))
	}

	a.Session = session.New(session.Config{
		TotalPairs: settings.Form.TotalPairs,
		Defaults:   inspection.RowDefaults{MaxScore: settings.Form.DefaultMaxScore},
	}, a.Catalog, a.Store, sessionOpts...)

	return a, nil
}

func (a *App) connectMQTT(ctx context.Context) *mqtt.Publisher {
	cfg := mqtt.ConfigFromSettings(a.Settings)
	log := a.log.Module("mqtt")
	client := mqtt.NewClient(cfg, a.mqttMetrics(), log)
	if err := client.Connect(ctx); err != nil {
		log.Warn("MQTT broker unreachable, record events will be dropped until it connects",
			logger.String("broker", cfg.Broker),
			logger.Error(err))
	}
	return mqtt.NewPublisher(client, cfg, a.Settings.Main.Name, log)
}

// Run serves the API and runs auto-save until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	opts := []api.ServerOption{
		api.WithLogger(a.log.Module("api")),
		api.WithExporter(a.Exporter),
		api.WithNotifications(a.Toasts),
		api.WithVersion(a.Info.GetVersion()),
	}
	if a.Metrics != nil {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}
	server, err := api.New(a.Settings, a.Session, a.Store, opts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error {
		return session.NewAutoSaver(a.Session, a.Settings.Form.AutoSave.Interval).Run(gctx)
	})
	return g.Wait()
}

// Close waits for background work and releases the datastore
func (a *App) Close() error {
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.Exporter != nil {
		a.Exporter.Wait()
	}
	if a.Toasts != nil {
		a.Toasts.Wait()
	}
	if a.KV != nil {
		return a.KV.Close()
	}
	return nil
}

func (a *App) datastoreMetrics() *metrics.DatastoreMetrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics.Datastore
}

func (a *App) exportMetrics() *metrics.ExportMetrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics.Export
}

func (a *App) mqttMetrics() *metrics.MQTTMetrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics.MQTT
}

func (a *App) httpMetrics() *metrics.HTTPMetrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics.HTTP
}
