package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ergolyam/clipbridge/internal/bridge"
	"github.com/ergolyam/clipbridge/internal/bus"
	"github.com/ergolyam/clipbridge/internal/clipboard"
	"github.com/ergolyam/clipbridge/internal/config"
	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/events"
	"github.com/ergolyam/clipbridge/internal/logging"
	"github.com/ergolyam/clipbridge/internal/persistence"
)

type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	ClipRepo     *persistence.ClipRepo
	EndpointRepo *persistence.EndpointRepo
	WriterQueue  *persistence.WriterQueue

	Clipboard *clipboard.SystemClipboard
	Bridge    *bridge.Service

	connStatusMu    sync.RWMutex
	connStatus      events.ConnectionStatus
	connStatusKnown bool
}

func Initialize(parent context.Context) (*Runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting clipbridge runtime", "version", BuildVersion(), "build_date", BuildDateYMD())

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.DB = db
	rt.ClipRepo = persistence.NewClipRepo(db)
	rt.EndpointRepo = persistence.NewEndpointRepo(db)

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	connSub := b.Subscribe(events.TopicConnStatus)
	go rt.captureConnStatus(ctx, connSub)

	writerQueue := persistence.NewWriterQueue(logMgr.Logger("persistence"), 256)
	writerQueue.Start(ctx)
	rt.WriterQueue = writerQueue

	rt.Clipboard = clipboard.NewSystemClipboard(logMgr.Logger("clipboard"))
	rt.Bridge = bridge.NewService(logMgr.Logger("bridge"), b, bridge.Options{})

	return rt, nil
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(events.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status)
		}
	}
}

func (r *Runtime) setConnStatus(status events.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = true
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() (events.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()
	return status, known
}

// CurrentConfig snapshots the active configuration for bus services.
func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Config
}

// RememberEndpoint writes the endpoint through to the config file and the
// endpoint history so the next start can reconnect without flags.
func (r *Runtime) RememberEndpoint(endpoint domain.Endpoint, autoConnect bool) {
	usedAt := time.Now()

	r.mu.Lock()
	cfg := r.Config
	changed := cfg.Connection.Host != endpoint.Host ||
		cfg.Connection.Port != endpoint.Port ||
		cfg.Connection.AutoConnect != autoConnect
	if changed {
		cfg.Connection.Host = endpoint.Host
		cfg.Connection.Port = endpoint.Port
		cfg.Connection.AutoConnect = autoConnect
		if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
			slog.Warn("save endpoint to config", "error", err)
		} else {
			r.Config = cfg
		}
	}
	r.mu.Unlock()

	r.WriterQueue.Enqueue("remember endpoint", func(ctx context.Context) error {
		return r.EndpointRepo.Remember(ctx, endpoint, usedAt)
	})
}

// LastEndpoint returns the most recently used endpoint, if any was remembered.
func (r *Runtime) LastEndpoint(ctx context.Context) (domain.Endpoint, bool) {
	endpoint, ok, err := r.EndpointRepo.LastUsed(ctx)
	if err != nil {
		slog.Warn("load last endpoint", "error", err)
		return domain.Endpoint{}, false
	}
	return endpoint, ok
}

// ClearHistory wipes the clip history and remembered endpoints.
func (r *Runtime) ClearHistory() error {
	if r.DB == nil {
		return fmt.Errorf("database is not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := persistence.ClearDatabase(ctx, r.DB); err != nil {
		return err
	}
	slog.Info("history cleared")

	return nil
}

func (r *Runtime) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bridge != nil {
		r.Bridge.Stop()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}
	return nil
}
