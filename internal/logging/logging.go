// Package logging 构造进程级 slog.Logger。
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps debug/info/warn/error to a slog level; unknown values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewJSON 返回写到 stdout 的 JSON logger，并设为默认 logger。API 进程使用。
func NewJSON(level string) *slog.Logger {
	return install(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}))
}

// NewText 返回文本格式 logger，worker 与命令行工具使用。
func NewText(w io.Writer, level string) *slog.Logger {
	return install(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func install(h slog.Handler) *slog.Logger {
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
