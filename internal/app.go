// Package internal provides the App struct that wires all components of
// the conductor system together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/conductor/internal/cli"
	"github.com/valter-silva-au/conductor/internal/codec"
	"github.com/valter-silva-au/conductor/internal/core"
	"github.com/valter-silva-au/conductor/internal/observability"
	"github.com/valter-silva-au/conductor/internal/storage"
	"github.com/valter-silva-au/conductor/internal/worker"
	"github.com/valter-silva-au/conductor/pkg/models"
)

// App holds all service dependencies for the conductor system.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.Config

	// Storage layer
	Store storage.StateStore

	// Core services
	Codec  codec.Codec
	Worker worker.Worker
	Mgr    *core.Manager

	// Observability
	EventLog observability.EventLog
}

// NewApp creates and wires all components of the conductor system.
// basePath is the directory where .conductorrc and the state store live.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Storage layer ---
	if cfg.StorePath != "" {
		path := cfg.StorePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(basePath, path)
		}
		store, err := storage.OpenLevelDBStateStore(path)
		if err != nil {
			return nil, fmt.Errorf("opening state store: %w", err)
		}
		app.Store = store
	} else {
		app.Store = storage.NewMemoryStateStore()
	}

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".conductor_events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable observability if the log can't be created.
		app.EventLog = nil
	}

	// --- Worker ---
	if cfg.WorkerCommand != "" {
		w, err := worker.NewCommandWorker(cfg.WorkerCommand, cfg.WorkerArgs)
		if err != nil {
			return nil, fmt.Errorf("configuring worker: %w", err)
		}
		app.Worker = w
	}

	// --- Core services ---
	app.Codec = codec.New(codec.Format(cfg.Format))

	app.Mgr, err = app.managerFor(resolveInvocationID(cfg))
	if err != nil {
		return nil, err
	}

	// --- CLI wiring ---
	cli.Mgr = app.Mgr
	cli.EventLog = app.EventLog
	cli.Cfg = app.Config
	cli.BasePath = basePath
	cli.NewManagerForInvocation = app.managerFor

	return app, nil
}

// managerFor builds a Manager bound to the given invocation scope,
// sharing the app's store, codec, worker, and event log.
func (app *App) managerFor(invocationID string) (*core.Manager, error) {
	var events core.EventSink
	if app.EventLog != nil {
		events = app.EventLog
	}

	mgr, err := core.NewManager(core.ManagerOptions{
		Key: storage.StateKey{
			Namespace:    app.Config.Namespace,
			Scope:        app.Config.Scope,
			InvocationID: invocationID,
			Manager:      app.Config.ManagerName,
		},
		Store:    app.Store,
		Codec:    app.Codec,
		Worker:   app.Worker,
		MaxTasks: app.Config.MaxTasks,
		TypeHint: app.Config.TypeHint,
		Events:   events,
	})
	if err != nil {
		return nil, fmt.Errorf("creating manager: %w", err)
	}
	return mgr, nil
}

// Close releases the app's backend resources.
func (app *App) Close() error {
	var firstErr error
	if app.EventLog != nil {
		if err := app.EventLog.Close(); err != nil {
			firstErr = err
		}
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// resolveInvocationID picks the invocation scope: config value, then the
// CONDUCTOR_INVOCATION environment variable, then "default".
func resolveInvocationID(cfg *models.Config) string {
	if cfg.InvocationID != "" {
		return cfg.InvocationID
	}
	if env := os.Getenv("CONDUCTOR_INVOCATION"); env != "" {
		return env
	}
	return "default"
}

// ResolveBasePath determines where conductor state lives: CONDUCTOR_HOME
// if set, otherwise the nearest ancestor directory containing a
// .conductorrc, otherwise the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("CONDUCTOR_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	// Walk up to find a directory containing .conductorrc.
	for {
		if _, err := os.Stat(filepath.Join(dir, ".conductorrc")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Fall back to cwd.
	cwd, _ := os.Getwd()
	return cwd
}
