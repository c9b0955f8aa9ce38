package logger

import (
	"io"
	"log/slog"
	"os"
)

const TimeFormat = "2006-01-02 15:04:05"

// Config 日志配置: Level 例如 "debug" "info"; HumanFriendly 为 true 时输出文本格式，否则 JSON
type Config struct {
	Level         string
	HumanFriendly bool
	Output        io.Writer
}

// ParseLevel 将字符串转为 slog.Level，无法识别时返回 Info
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewFromConfig 根据配置创建 slog.Logger
func NewFromConfig(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(TimeFormat))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.HumanFriendly {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}
