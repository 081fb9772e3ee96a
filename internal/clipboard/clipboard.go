package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrNoTool indicates no supported clipboard utility produced a result.
var ErrNoTool = errors.New("no clipboard tool available")

const toolTimeout = time.Second

// Reader reads the current system clipboard text.
type Reader interface {
	ReadText(ctx context.Context) (string, error)
}

// Writer replaces the system clipboard text.
type Writer interface {
	WriteText(ctx context.Context, text string) error
}

type tool struct {
	name string
	args []string
}

// Tools are tried in order; Wayland utilities first, then the X11 ones.
var (
	readTools = []tool{
		{name: "wl-paste", args: []string{"--type", "text", "--no-newline"}},
		{name: "xclip", args: []string{"-selection", "clipboard", "-out"}},
		{name: "xsel", args: []string{"--clipboard", "--output"}},
	}
	writeTools = []tool{
		{name: "wl-copy", args: []string{"--type", "text"}},
		{name: "xclip", args: []string{"-selection", "clipboard", "-in"}},
		{name: "xsel", args: []string{"--clipboard", "--input"}},
	}
)

// SystemClipboard shells out to the first available clipboard utility.
type SystemClipboard struct {
	logger  *slog.Logger
	timeout time.Duration

	lookPath func(name string) (string, error)
	runTool  func(ctx context.Context, path string, args []string, input string) (string, error)
}

func NewSystemClipboard(logger *slog.Logger) *SystemClipboard {
	return &SystemClipboard{
		logger:   logger,
		timeout:  toolTimeout,
		lookPath: exec.LookPath,
		runTool:  runCommand,
	}
}

func (c *SystemClipboard) ReadText(ctx context.Context) (string, error) {
	for _, t := range readTools {
		path, err := c.lookPath(t.name)
		if err != nil {
			continue
		}

		runCtx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := c.runTool(runCtx, path, t.args, "")
		cancel()
		if err != nil {
			c.logger.Debug("clipboard read failed", "tool", t.name, "error", err)

			continue
		}

		return out, nil
	}

	return "", ErrNoTool
}

func (c *SystemClipboard) WriteText(ctx context.Context, text string) error {
	for _, t := range writeTools {
		path, err := c.lookPath(t.name)
		if err != nil {
			continue
		}

		runCtx, cancel := context.WithTimeout(ctx, c.timeout)
		_, err = c.runTool(runCtx, path, t.args, text)
		cancel()
		if err != nil {
			c.logger.Debug("clipboard write failed", "tool", t.name, "error", err)

			continue
		}

		return nil
	}

	c.logger.Warn("no clipboard writer available")

	return ErrNoTool
}

func runCommand(ctx context.Context, path string, args []string, input string) (string, error) {
	// #nosec G204 -- path comes from exec.LookPath over the fixed tool list.
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("run %s: %w: %s", path, err, detail)
		}

		return "", fmt.Errorf("run %s: %w", path, err)
	}

	return stdout.String(), nil
}
