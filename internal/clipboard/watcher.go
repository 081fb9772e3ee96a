package clipboard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Watcher polls the system clipboard and reports new text. Text that just
// crossed the bridge, in either direction, is not reported again, which keeps
// two machines from bouncing the same clip back and forth.
type Watcher struct {
	reader   Reader
	interval time.Duration
	onChange func(text string)
	logger   *slog.Logger

	mu          sync.Mutex
	lastPolled  string
	hasPolled   bool
	lastBridged string
}

func NewWatcher(reader Reader, interval time.Duration, onChange func(text string), logger *slog.Logger) *Watcher {
	return &Watcher{
		reader:   reader,
		interval: interval,
		onChange: onChange,
		logger:   logger,
	}
}

// MarkApplied records text that was just written to the clipboard from the
// bridge so the next poll does not echo it back.
func (w *Watcher) MarkApplied(text string) {
	w.mu.Lock()
	w.lastBridged = text
	w.mu.Unlock()
}

// Run polls until the context is cancelled and returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("clipboard watcher started", "interval", w.interval)

	for {
		w.pollOnce(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("clipboard watcher stopped")

			return ctx.Err()
		case <-time.After(w.interval):
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	text, err := w.reader.ReadText(ctx)
	if err != nil {
		w.logger.Debug("clipboard poll failed", "error", err)

		return
	}

	w.mu.Lock()
	// The first poll only records a baseline; whatever was on the clipboard
	// before the watcher started is not treated as a change.
	changed := w.hasPolled && text != w.lastPolled
	publish := changed && text != "" && text != w.lastBridged
	w.lastPolled = text
	w.hasPolled = true
	if publish {
		w.lastBridged = text
	}
	w.mu.Unlock()

	if publish {
		w.logger.Debug("clipboard changed", "payload_len", len(text))
		w.onChange(text)
	}
}
