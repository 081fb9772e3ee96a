package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ergolyam/clipbridge/internal/app"
	"github.com/ergolyam/clipbridge/internal/bus"
	"github.com/ergolyam/clipbridge/internal/config"
	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/events"
	"github.com/ergolyam/clipbridge/internal/notifications"
	"github.com/ergolyam/clipbridge/internal/platform"
)

const maxClipSummaryLen = 80

func main() {
	if err := run(); err != nil {
		slog.Error("run clipbridge", "error", err)
		os.Exit(1)
	}
}

type launchOptions struct {
	Host         string
	Port         int
	Auto         bool
	AutoSet      bool
	LogLevel     string
	ClearHistory bool
	ShowHistory  bool
	ShowVersion  bool
}

func parseLaunchOptions(args []string) (launchOptions, error) {
	fs := flag.NewFlagSet("clipbridge", flag.ContinueOnError)
	host := fs.String("host", "", "bridge server host (defaults to the saved connection)")
	port := fs.Int("port", 0, "bridge server TCP port")
	auto := fs.Bool("auto", true, "wait for the server and reconnect after drops")
	logLevel := fs.String("log-level", "", "log level override (debug, info, warn, error)")
	clearHistory := fs.Bool("clear-history", false, "wipe stored clips and endpoints, then exit")
	showHistory := fs.Bool("show-history", false, "print recent clip history, then exit")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if fs.NArg() > 0 {
		return launchOptions{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	opts := launchOptions{
		Host:         strings.TrimSpace(*host),
		Port:         *port,
		Auto:         *auto,
		LogLevel:     strings.TrimSpace(*logLevel),
		ClearHistory: *clearHistory,
		ShowHistory:  *showHistory,
		ShowVersion:  *showVersion,
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "auto" {
			opts.AutoSet = true
		}
	})

	return opts, nil
}

// resolveEndpoint picks the dial target from flags, saved config, and the
// endpoint history, in that order of precedence.
func resolveEndpoint(cfg config.AppConfig, last domain.Endpoint, haveLast bool, opts launchOptions) (domain.Endpoint, bool, error) {
	endpoint := domain.Endpoint{Host: strings.TrimSpace(cfg.Connection.Host), Port: cfg.Connection.Port}
	if endpoint.Host == "" && haveLast {
		endpoint = last
	}
	if opts.Host != "" {
		endpoint.Host = opts.Host
	}
	if opts.Port > 0 {
		endpoint.Port = opts.Port
	}
	if endpoint.Port == 0 {
		endpoint.Port = config.DefaultPort
	}

	auto := cfg.Connection.AutoConnect
	if opts.AutoSet {
		auto = opts.Auto
	}

	if endpoint.Host == "" {
		return domain.Endpoint{}, false, errors.New("missing bridge host: set -host or save connection host in config")
	}
	if err := endpoint.Validate(); err != nil {
		return domain.Endpoint{}, false, fmt.Errorf("invalid bridge endpoint: %w", err)
	}

	return endpoint, auto, nil
}

func run() error {
	opts, err := parseLaunchOptions(os.Args[1:])
	if err != nil {
		return err
	}
	if opts.ShowVersion {
		fmt.Printf("%s %s\n%s\n", app.Name, app.BuildVersionWithDate(), app.SourceURL)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize app runtime: %w", err)
	}

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			_ = rt.Close()
		})
	}
	defer closeRuntime()

	if opts.ClearHistory {
		return rt.ClearHistory()
	}

	history := app.NewHistoryService(rt.Bus, rt.WriterQueue, rt.ClipRepo, rt.CurrentConfig, rt.LogManager.Logger("app.history"))
	if opts.ShowHistory {
		return printHistory(ctx, history)
	}

	if opts.LogLevel != "" {
		logCfg := rt.Config.Logging
		logCfg.Level = opts.LogLevel
		if err := rt.LogManager.Configure(logCfg, rt.Paths.LogFile); err != nil {
			return fmt.Errorf("apply log level: %w", err)
		}
	}

	lock, err := platform.AcquireInstanceLock(app.Name)
	switch {
	case err == nil:
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				slog.Warn("release instance lock", "error", releaseErr)
			}
		}()
	case errors.Is(err, platform.ErrAlreadyRunning):
		return fmt.Errorf("another %s instance is already running", app.Name)
	case errors.Is(err, platform.ErrLockUnsupported):
		slog.Debug("instance lock unsupported on this platform")
	default:
		slog.Warn("acquire instance lock", "error", err)
	}

	last, haveLast := rt.LastEndpoint(ctx)
	endpoint, auto, err := resolveEndpoint(rt.CurrentConfig(), last, haveLast, opts)
	if err != nil {
		return err
	}
	rt.RememberEndpoint(endpoint, auto)

	logger := rt.LogManager.Logger("cli")
	logger.Info("starting clipbridge", "version", app.BuildVersion(), "build_date", app.BuildDateYMD(), "target", endpoint.Addr(), "auto", auto)

	history.Start(rt.Ctx)

	sender := notifications.NewBeeepSender(rt.LogManager.Logger("notifications"))
	notifier := app.NewNotificationService(rt.Bus, rt.CurrentConfig, sender, rt.LogManager.Logger("app.notifications"))
	notifier.Start(rt.Ctx)

	pollInterval := time.Duration(rt.CurrentConfig().Clipboard.PollMs) * time.Millisecond
	clipSync := app.NewClipboardSync(rt.Bus, rt.Bridge, rt.Clipboard, rt.Clipboard, pollInterval, rt.LogManager.Logger("app.sync"))
	clipSync.Start(rt.Ctx)

	statusSub := rt.Bus.Subscribe(events.TopicConnStatus)
	defer rt.Bus.Unsubscribe(statusSub, events.TopicConnStatus)

	if err := rt.Bridge.Start(rt.Ctx, endpoint, auto); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	return watchBridge(ctx, logger, statusSub, auto)
}

// watchBridge logs connection transitions until interrupt. Without auto
// reconnect a disconnect is final, so the process exits with the outcome of
// the single attempt.
func watchBridge(ctx context.Context, logger *slog.Logger, statusSub bus.Subscription, auto bool) error {
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case raw, ok := <-statusSub:
			if !ok {
				return nil
			}
			status, ok := raw.(events.ConnectionStatus)
			if !ok {
				continue
			}
			attrs := []any{"state", string(status.State), "target", status.Endpoint.Addr()}
			if status.Text != "" {
				attrs = append(attrs, "detail", status.Text)
			}
			if status.Err != "" {
				attrs = append(attrs, "error", status.Err)
			}
			logger.Info("bridge status", attrs...)
			if !auto && status.State == events.ConnectionStateDisconnected {
				if status.Err != "" {
					return fmt.Errorf("bridge connection failed: %s", status.Err)
				}

				return nil
			}
		}
	}
}

func printHistory(ctx context.Context, history *app.HistoryService) error {
	entries, err := history.Recent(ctx, app.RecentClipsLoad)
	if err != nil {
		return fmt.Errorf("load clip history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("history is empty")

		return nil
	}
	for _, entry := range entries {
		fmt.Println(historyLine(entry))
	}

	return nil
}

func historyLine(entry domain.ClipEntry) string {
	return fmt.Sprintf("%s  %-6s  %s", entry.At.Format(time.DateTime), originLabel(entry.Origin), clipSummary(entry.Body))
}

func originLabel(origin domain.ClipOrigin) string {
	switch origin {
	case domain.ClipOriginRemote:
		return "remote"
	case domain.ClipOriginLocal:
		return "local"
	default:
		return "?"
	}
}

// clipSummary flattens a clip to one line short enough for terminal output.
func clipSummary(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) > maxClipSummaryLen {
		return string(runes[:maxClipSummaryLen]) + "..."
	}

	return flat
}
