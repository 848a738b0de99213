package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pdfchat/internal/backend"
	"pdfchat/internal/config"
	"pdfchat/internal/db"
	"pdfchat/internal/logging"
	"pdfchat/internal/session"

	"github.com/rs/zerolog"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	backendURL string
	offline    bool
	logLevel   string
}

type snapshotStore interface {
	session.Snapshotter
	Close() error
}

// app is everything a command needs, wired in dependency order.
type app struct {
	cfg    *config.Config
	logger *zerolog.Logger
	client *backend.Client
	store  *session.Store

	closers []func() error
}

// loadConfig reads the config file and applies flag overrides on top.
func loadConfig(f *globalFlags) (*config.Config, error) {
	path := f.configPath
	required := path != ""
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}

	if f.backendURL != "" {
		cfg.Backend.BaseURL = strings.TrimRight(f.backendURL, "/")
	}
	if f.offline {
		cfg.Backend.Offline = true
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp bootstraps config, logger, snapshot driver, backend client and
// store, then loads the chat list. logOut receives the logs; when nil the
// configured log file is used.
func openApp(ctx context.Context, f *globalFlags, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a := &app{cfg: cfg}

	// ---- Logger ----
	if logOut == nil {
		logPath, err := cfg.LogPath()
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		file, err := logging.OpenFile(logPath)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		a.closers = append(a.closers, file.Close)
		logOut = file
	}
	a.logger = logging.New(cfg.Log, logOut)

	// ---- Snapshot ----
	snap, err := openSnapshot(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s snapshot: %w", cfg.Storage.Driver, err)
	}
	a.closers = append(a.closers, snap.Close)

	// ---- Backend ----
	var remote session.Backend
	if !cfg.Backend.Offline {
		a.client = backend.New(cfg.Backend.BaseURL,
			backend.WithTimeout(cfg.Backend.Timeout),
			backend.WithLogger(a.logger),
		)
		remote = a.client
	}

	// ---- Store ----
	a.store = session.New(remote, snap,
		session.WithLogger(a.logger),
		session.WithMaxChunks(cfg.Backend.MaxChunks),
	)
	if err := a.store.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load chats: %w", err)
	}

	a.logger.Debug().
		Str("backend", cfg.Backend.BaseURL).
		Bool("offline", cfg.Backend.Offline).
		Str("storage", cfg.Storage.Driver).
		Int("chats", len(a.store.ListChats())).
		Msg("pdfchat ready")
	return a, nil
}

func openSnapshot(cfg *config.Config) (snapshotStore, error) {
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Driver == config.DriverFile {
		return db.OpenFile(path)
	}
	return db.OpenSQLite(path)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn().Err(err).Msg("close")
		}
	}
	a.closers = nil
}

func (a *app) backendURL() string {
	if a.client == nil {
		return ""
	}
	return a.client.BaseURL()
}
