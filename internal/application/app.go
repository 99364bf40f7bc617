// Package application assembles the fleet service from configuration. Both
// the HTTP server and the command line tool start here.
package application

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/JonMunkholm/dbfleet/internal/config"
	"github.com/JonMunkholm/dbfleet/internal/core"
	"github.com/JonMunkholm/dbfleet/internal/dialect"
	"github.com/JonMunkholm/dbfleet/internal/execlog"
)

// App holds the long-lived collaborators built from a Config.
type App struct {
	Config    *config.Config
	Databases *config.Databases // nil when the registry file does not exist
	Service   *core.Service
	ExecLog   *execlog.Store // nil when LOCALDB_HOST is unset
}

// New loads the database registry, opens the execution log when configured
// and builds the Service. A missing registry file is not an error; a
// malformed one is.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	dbs, err := config.LoadDatabases(cfg.Fleet.DBInfoPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Warn("database registry not found; named-database operations disabled", "path", cfg.Fleet.DBInfoPath)
	case err != nil:
		return nil, err
	default:
		app.Databases = dbs
		slog.Info("database registry loaded", "path", dbs.Path(), "databases", len(dbs.Names()), "types", dbs.Types())
	}

	opts := []core.Option{core.WithHistory(core.NewHistory(cfg.Runs.HistoryLimit))}

	if cfg.ExecLog.Enabled() {
		store, err := execlog.Open(ctx, execlog.Config{
			Host:     cfg.ExecLog.Host,
			Port:     cfg.ExecLog.Port,
			User:     cfg.ExecLog.User,
			Password: cfg.ExecLog.Password,
			Database: cfg.ExecLog.Database,
			Timeout:  cfg.Fleet.ConnectTimeout,
		})
		if err != nil {
			// Runs must not depend on the log store.
			slog.Warn("exec log unavailable", "host", cfg.ExecLog.Host, "error", err)
		} else if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("exec log schema", "error", err)
			store.Close()
		} else {
			app.ExecLog = store
			opts = append(opts, core.WithExecLog(store))
			slog.Info("exec log enabled", "host", cfg.ExecLog.Host, "database", cfg.ExecLog.Database)
		}
	}

	if fw := core.NewHTTPForwarder(cfg.Fleet.APIURL); fw != nil {
		opts = append(opts, core.WithForwarder(fw))
		slog.Info("result forwarding enabled", "api_url", fw.BaseURL)
	}

	// A nil *Databases must not reach the Service as a non-nil interface.
	var resolver core.DatabaseResolver
	if app.Databases != nil {
		resolver = app.Databases
	}
	app.Service = core.NewService(dialect.Factory{}, resolver, Settings(cfg), opts...)
	return app, nil
}

// Settings maps configuration onto service settings.
func Settings(cfg *config.Config) core.Settings {
	return core.Settings{
		ConnectTimeout: cfg.Fleet.ConnectTimeout,
		RequestTimeout: cfg.Fleet.RequestTimeout,
		ErrorMaxLen:    cfg.Fleet.ErrorMaxLen,
		Limits:         core.Limits{MaxRows: cfg.Fleet.MaxRows, MaxBytes: cfg.Fleet.MaxBytes},
		Charset:        cfg.Fleet.InputEncoding,
		Defaults: core.Credentials{
			User:     cfg.Fleet.DefaultUser,
			Password: cfg.Fleet.DefaultPassword,
		},
	}
}

// Close releases the execution log connection.
func (a *App) Close() error {
	if a.ExecLog != nil {
		return a.ExecLog.Close()
	}
	return nil
}
