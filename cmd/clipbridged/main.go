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
	"syscall"
	"time"

	"github.com/ergolyam/clipbridge/internal/app"
	"github.com/ergolyam/clipbridge/internal/clipboard"
	"github.com/ergolyam/clipbridge/internal/config"
	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/logging"
	"github.com/ergolyam/clipbridge/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run clipbridged", "error", err)
		os.Exit(1)
	}
}

type serveOptions struct {
	Host        string
	Port        int
	PollMs      int
	LogLevel    string
	ShowVersion bool
}

func parseServeOptions(args []string) (serveOptions, error) {
	fs := flag.NewFlagSet("clipbridged", flag.ContinueOnError)
	host := fs.String("host", "0.0.0.0", "listen address")
	port := fs.Int("port", config.DefaultPort, "listen TCP port")
	pollMs := fs.Int("poll-ms", config.DefaultPollMs, "clipboard poll period in milliseconds")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return serveOptions{}, err
	}
	if fs.NArg() > 0 {
		return serveOptions{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	opts := serveOptions{
		Host:        strings.TrimSpace(*host),
		Port:        *port,
		PollMs:      *pollMs,
		LogLevel:    strings.TrimSpace(*logLevel),
		ShowVersion: *showVersion,
	}
	if opts.Host == "" {
		return serveOptions{}, errors.New("listen host is empty")
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return serveOptions{}, fmt.Errorf("listen port out of range: %d", opts.Port)
	}
	if opts.PollMs < config.MinPollMs {
		opts.PollMs = config.MinPollMs
	}

	return opts, nil
}

func run() error {
	opts, err := parseServeOptions(os.Args[1:])
	if err != nil {
		return err
	}
	if opts.ShowVersion {
		fmt.Printf("clipbridged %s\n", app.BuildVersionWithDate())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logMgr := logging.NewManager()
	if err := logMgr.Configure(config.LoggingConfig{Level: opts.LogLevel}, ""); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()

	logger := logMgr.Logger("cli")
	logger.Info("starting clipbridged", "version", app.BuildVersion(), "build_date", app.BuildDateYMD(), "bind", opts.Host, "port", opts.Port, "poll_ms", opts.PollMs)

	sysClip := clipboard.NewSystemClipboard(logMgr.Logger("clipboard"))
	srv := server.New(logMgr.Logger("server"), sysClip, sysClip, domain.Endpoint{Host: opts.Host, Port: opts.Port}, server.Options{
		PollInterval: time.Duration(opts.PollMs) * time.Millisecond,
	})
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Wait()

	return nil
}
