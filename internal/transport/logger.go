package transport

import "log/slog"

func sessionLogger(target string) *slog.Logger {
	return slog.With("component", "transport", "target", target)
}
