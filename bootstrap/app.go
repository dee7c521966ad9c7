package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"argus/components"
	"argus/config"
	"argus/core"
	"argus/setup"
	"argus/storage"

	"go.uber.org/zap"
)

// App represents the Argus application with all its components.
type App struct {
	// Configuration
	Config   *config.Config
	Logger   *zap.Logger
	Sugar    *zap.SugaredLogger
	LogLevel zap.AtomicLevel

	// Setup machinery
	Registry     *core.Registry
	Catalog      *core.Catalog
	Loader       *setup.Loader
	Scheduler    *setup.Scheduler
	Orchestrator *setup.Orchestrator
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{}

	// Initialize logger
	logger, sugar, level, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar
	app.LogLevel = level

	sugar.Info("Argus starting...")

	// Pre-flight checks
	sugar.Info("Running pre-flight checks...")
	if _, err := EnsureDataDirectories(sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	// Load configuration
	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	if err := applyLogLevel(cfg, level); err != nil {
		return nil, err
	}

	// Component catalog with the built-ins registered
	app.Catalog = core.NewCatalog()
	components.RegisterBuiltins(app.Catalog)

	app.Registry = core.NewRegistry()
	// The logger component adjusts this handle during tier-1 setup.
	app.Registry.SetData(components.DataKeyLogLevel, level)

	return app, nil
}

// Start runs the component tiers and the domain setup graph. It returns
// once every submitted setup task has finished; components still retrying
// in the background keep doing so.
func (a *App) Start(ctx context.Context) error {
	a.Loader = setup.NewLoader(a.Registry, a.Catalog, setup.LoaderOptions{
		RetryInterval:    a.Config.Setup.ComponentRetryInterval,
		RetryIntervalMax: a.Config.Setup.ComponentRetryIntervalMax,
		SlowSetupWarning: a.Config.Setup.SlowSetupWarning,
	}, a.Sugar)

	a.Scheduler = setup.NewScheduler(a.Registry, a.Catalog, a.Loader, setup.SchedulerOptions{
		Concurrency:           a.Config.Setup.Concurrency,
		RetryInterval:         a.Config.Setup.DomainRetryInterval,
		RetryIntervalMax:      a.Config.Setup.DomainRetryIntervalMax,
		SlowDependencyWarning: a.Config.Setup.SlowDependencyWarning,
	}, a.Sugar)

	a.Orchestrator = setup.NewOrchestrator(a.Registry, a.Loader, a.Scheduler, setup.OrchestratorOptions{
		ComponentJoinTimeout: a.Config.Setup.ComponentJoinTimeout,
	}, a.Sugar)

	start := time.Now()
	if err := a.Orchestrator.Run(ctx, a.Config.Components); err != nil {
		return fmt.Errorf("component setup failed: %w", err)
	}

	a.Sugar.Infow("Startup complete",
		"duration", time.Since(start),
		"loaded", a.Registry.Loaded(),
		"failed", a.Registry.Failed())
	return nil
}

// Store returns the JSON store for a namespace key, backed by the
// configured storage directory.
func (a *App) Store(key string) *storage.Store {
	return storage.NewStore(a.Config.GetStorageDir(), key, a.Config.StorageVersion, a.Sugar)
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := components.ShutdownWebserver(ctx, a.Registry); err != nil {
		a.Sugar.Errorw("Failed to stop webserver", "error", err)
	}

	if bus, ok := a.Registry.Data(components.DataKeyBus).(*components.Bus); ok {
		bus.Close()
	}

	a.Sugar.Info("Shutdown complete")
	a.Logger.Sync()
}
