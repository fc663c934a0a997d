package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger from LOG_FORMAT. "json" emits
// structured JSON for log shippers; "pretty" (the development default,
// and the fallback for unrecognized values) emits human-readable text.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	format := "pretty"
	if cfg != nil && cfg.LogFormat != "" {
		format = cfg.LogFormat
	}
	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
