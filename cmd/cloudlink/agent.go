package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/gray-logic-cloudlink/migrations"

	"github.com/nerrad567/gray-logic-cloudlink/internal/api"
	"github.com/nerrad567/gray-logic-cloudlink/internal/control"
	"github.com/nerrad567/gray-logic-cloudlink/internal/credential"
	"github.com/nerrad567/gray-logic-cloudlink/internal/heatpump"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-cloudlink/internal/poller"
	"github.com/nerrad567/gray-logic-cloudlink/internal/session"
	"github.com/nerrad567/gray-logic-cloudlink/internal/setpoint"
	"github.com/nerrad567/gray-logic-cloudlink/internal/telemetry"
	"github.com/nerrad567/gray-logic-cloudlink/internal/watchdog"
)

// agent owns every long-lived component of one run. Components borrow
// from it for the duration of a call; close tears everything down in
// reverse order of construction.
type agent struct {
	cfg *config.Config
	log *logging.Logger

	watchdog  *watchdog.Systemd
	creds     *credential.Manager
	db        *database.DB
	store     *setpoint.Store
	driver    heatpump.Driver
	session   *session.Session
	influx    *influxdb.Client
	diag      *api.Server
	scheduler *poller.Scheduler
	registry  *prometheus.Registry

	closers []func()
}

// newAgent builds the agent. Any setup failure is fatal; whatever was
// already built is torn down before returning.
func newAgent(ctx context.Context, cfg *config.Config, log *logging.Logger) (*agent, error) {
	a := &agent{cfg: cfg, log: log}
	if err := a.build(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *agent) build(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	if err := a.setupWatchdog(); err != nil {
		return err
	}
	if err := a.setupCredentials(); err != nil {
		return err
	}
	if err := a.setupStore(ctx); err != nil {
		return err
	}
	if err := a.setupDriver(); err != nil {
		return err
	}

	handler := control.NewHandler(a.driver, a.store)
	handler.SetLogger(log.With("component", "control"))

	dialer := session.NewBrokerDialer(cfg.MQTT, cfg.Device.DeviceID)
	dialer.SetLogger(log.With("component", "mqtt"))
	a.session = session.New(a.creds, dialer, handler, session.Config{
		ConnectAttempts: cfg.MQTT.ConnectAttempts,
	})
	a.session.SetLogger(log.With("component", "session"))
	a.onClose("broker session", a.session.Close)

	publisher := telemetry.NewPublisher(cfg.Device.DeviceID, mqtt.BrokerHost(cfg.MQTT), a.session, a.store)
	publisher.SetLogger(log.With("component", "telemetry"))
	if err := a.setupInflux(ctx, publisher); err != nil {
		return err
	}

	detector, err := poller.NewDetector(cfg.Poll.ChangeDetection, a.driver)
	if err != nil {
		return fmt.Errorf("selecting change detector: %w", err)
	}
	sched, err := poller.NewScheduler(poller.Options{
		Interval:  cfg.PollInterval(),
		Driver:    a.driver,
		Detector:  detector,
		Session:   a.session,
		Publisher: publisher,
		Store:     a.store,
		Control:   handler,
		Watchdog:  a.watchdog,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	sched.SetLogger(log.With("component", "poller"))
	a.scheduler = sched

	a.registry = newRegistry()
	if err := a.setupDiagnostics(ctx); err != nil {
		return err
	}
	return nil
}

// run starts the poll loop and blocks until shutdown or a fatal error.
func (a *agent) run(ctx context.Context) error {
	dumpConfig(a.log, a.cfg, a.creds.Identity(), a.store)

	a.watchdog.Ready()
	a.log.Info("initialisation complete",
		"poll_interval", a.cfg.PollInterval(),
		"change_detection", a.cfg.Poll.ChangeDetection,
	)

	err := a.scheduler.Run(ctx)
	a.watchdog.Stopping()
	if err != nil {
		if errors.Is(err, poller.ErrNonOperational) {
			a.log.Error("device non-operational, restart required", "error", err)
		}
		return err
	}

	a.log.Info("cloudlink stopped")
	return nil
}

// onClose registers a teardown step.
func (a *agent) onClose(name string, fn func() error) {
	a.closers = append(a.closers, func() {
		a.log.Info("closing " + name)
		if err := fn(); err != nil {
			a.log.Error("error closing "+name, "error", err)
		}
	})
}

// close runs the teardown steps in reverse order. Safe to call twice.
func (a *agent) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *agent) setupWatchdog() error {
	w, err := watchdog.NewSystemd()
	if err != nil {
		return err
	}
	w.SetLogger(a.log.With("component", "watchdog"))
	if !a.cfg.Watchdog.Enabled {
		w.Disable()
	}
	a.watchdog = w
	a.log.Info("watchdog configured",
		"enabled", w.Enabled(),
		"interval", w.Interval(),
	)
	return nil
}

func (a *agent) setupCredentials() error {
	identity, err := credential.NewIdentity(
		a.cfg.Device.ProjectID,
		a.cfg.Device.Location,
		a.cfg.Device.RegistryID,
		a.cfg.Device.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("device identity: %w", err)
	}

	m, err := credential.NewManager(identity, credential.ManagerConfig{
		Lifetime:    a.cfg.TokenLifetime(),
		DriftMargin: a.cfg.DriftMargin(),
	})
	if err != nil {
		return fmt.Errorf("credential manager: %w", err)
	}
	m.SetLogger(a.log.With("component", "credential"))
	m.SetWatchdog(a.watchdog)

	loader, err := credential.NewLoader(a.cfg.Credentials)
	if err != nil {
		return err
	}
	if err := credential.Setup(m, loader); err != nil {
		return err
	}

	anchors, _ := m.GetTrustAnchors()
	a.log.Info("credentials loaded",
		"source", a.cfg.Credentials.Source,
		"client_id", identity.ClientID(),
		"trust_anchors", anchors.Len(),
	)
	a.creds = m
	return nil
}

func (a *agent) setupStore(ctx context.Context) error {
	var backend setpoint.Backend
	switch a.cfg.Storage.Backend {
	case config.StorageBackendSQLite:
		db, err := database.Open(database.Config{
			Path:        a.cfg.Storage.Path,
			WALMode:     true,
			BusyTimeout: 5,
			SyncFull:    true,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		a.db = db
		a.onClose("database", db.Close)

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		backend = setpoint.NewSQLiteBackend(db.DB)
		a.log.Info("setpoint store opened", "backend", "sqlite", "path", db.Path())

	case config.StorageBackendFile:
		fb := setpoint.NewFileBackend(a.cfg.Storage.Dir)
		fb.SetWarnFunc(a.log.With("component", "setpoint").Warn)
		backend = fb
		a.log.Info("setpoint store opened", "backend", "file", "dir", a.cfg.Storage.Dir)

	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}

	store := setpoint.NewStore(a.cfg.Device.DeviceID, backend)
	store.SetLogger(a.log.With("component", "setpoint"))
	if err := store.Open(ctx); err != nil {
		_ = backend.Close()
		return fmt.Errorf("loading setpoints: %w", err)
	}
	a.store = store
	if a.cfg.Storage.Backend == config.StorageBackendFile {
		a.onClose("setpoint store", store.Close)
	}
	return nil
}

func (a *agent) setupDriver() error {
	switch a.cfg.Driver.Kind {
	case "simulated", "":
		initial := heatpump.Settings{Mode: heatpump.ModeHeat, TargetTemperature: 21}
		if v, ok := a.store.Load(setpoint.ModeHeat); ok {
			initial.TargetTemperature = float64(v)
		}
		a.driver = heatpump.NewSimulator(initial, 20)
	default:
		return fmt.Errorf("unsupported driver kind %q", a.cfg.Driver.Kind)
	}
	a.onClose("heat pump driver", a.driver.Close)
	return nil
}

func (a *agent) setupInflux(ctx context.Context, publisher *telemetry.Publisher) error {
	if !a.cfg.InfluxDB.Enabled {
		a.log.Info("InfluxDB mirror disabled")
		return nil
	}

	client, err := influxdb.Connect(ctx, a.cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		a.log.Error("InfluxDB write error", "error", err)
	})
	a.influx = client
	a.onClose("InfluxDB connection", client.Close)
	publisher.SetMirror(client)

	a.log.Info("InfluxDB mirror connected",
		"url", a.cfg.InfluxDB.URL,
		"org", a.cfg.InfluxDB.Org,
		"bucket", a.cfg.InfluxDB.Bucket,
	)
	return nil
}

func (a *agent) setupDiagnostics(ctx context.Context) error {
	if !a.cfg.Diagnostics.Enabled {
		return nil
	}
	checks := make(map[string]api.HealthChecker)
	if a.db != nil {
		checks["database"] = a.db
	}
	if a.influx != nil {
		checks["influxdb"] = a.influx
	}

	srv, err := api.New(api.Deps{
		Config:    a.cfg.Diagnostics,
		Logger:    a.log.With("component", "api"),
		Session:   a.session,
		Setpoints: a.store,
		Gatherer:  a.registry,
		DeviceID:  a.cfg.Device.DeviceID,
		ClientID:  a.creds.Identity().ClientID(),
		Broker:    mqtt.BrokerURL(a.cfg.MQTT),
		Version:   version,

		HealthChecks: checks,
	})
	if err != nil {
		return fmt.Errorf("creating diagnostics server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	a.diag = srv
	a.onClose("diagnostics server", srv.Close)
	return nil
}

// newRegistry collects every package's metrics on a private registry.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, set := range [][]prometheus.Collector{
		credential.MetricsCollectors(),
		session.MetricsCollectors(),
		setpoint.MetricsCollectors(),
		heatpump.MetricsCollectors(),
		poller.MetricsCollectors(),
	} {
		reg.MustRegister(set...)
	}
	return reg
}

// dumpConfig logs the startup banner with the saved setpoints. Modes never
// saved are reported as -1.
func dumpConfig(log *logging.Logger, cfg *config.Config, identity credential.Identity, store *setpoint.Store) {
	args := []any{
		"client_id", identity.ClientID(),
		"broker", mqtt.BrokerURL(cfg.MQTT),
		"poll_interval", cfg.PollInterval(),
		"token_lifetime", cfg.TokenLifetime().Round(time.Second),
	}
	for _, r := range store.Snapshot() {
		v := float32(-1)
		if r.Set {
			v = r.Value
		}
		args = append(args, "saved_"+r.Mode.String(), v)
	}
	log.Info("cloudlink configuration", args...)
}
