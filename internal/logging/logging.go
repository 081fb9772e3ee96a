package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ergolyam/clipbridge/internal/config"
)

// Manager owns the process logger configuration and the optional log file.
type Manager struct {
	mu     sync.RWMutex
	logger *slog.Logger
	file   *os.File
}

func NewManager() *Manager {
	m := &Manager{}
	m.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	return m
}

// Configure rebuilds the default logger from cfg. When file logging is
// enabled, records go to both stdout and filePath; a previously opened log
// file is closed first.
func (m *Manager) Configure(cfg config.LoggingConfig, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	writer := io.Writer(os.Stdout)
	if cfg.LogToFile {
		cleanPath := filepath.Clean(filePath)
		// #nosec G304 -- path is resolved by app runtime and points to user config dir.
		file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		m.file = file
		writer = newTeeWriter(os.Stdout, file)
	}

	m.logger = slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(m.logger)

	return nil
}

func (m *Manager) Logger(component string) *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.logger.With("component", component)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			return err
		}
		m.file = nil
	}

	return nil
}

// ParseLevel maps a config or flag value to a slog level. An empty value
// means info.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %q", raw)
	}
}

// teeWriter duplicates writes across destinations. A write succeeds as long
// as at least one destination accepted it, so a broken stdout does not take
// the log file down with it.
type teeWriter struct {
	writers []io.Writer
}

func newTeeWriter(writers ...io.Writer) io.Writer {
	kept := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			kept = append(kept, w)
		}
	}

	return &teeWriter{writers: kept}
}

func (w *teeWriter) Write(p []byte) (int, error) {
	var (
		delivered bool
		firstErr  error
	)

	for _, dst := range w.writers {
		n, err := dst.Write(p)
		if err == nil && n != len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}
		delivered = true
	}

	if delivered || firstErr == nil {
		return len(p), nil
	}

	return 0, firstErr
}
