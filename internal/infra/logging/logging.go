package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"lesson-checkout/internal/config"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger configured from config.
// Supports "trace" | "debug" | "info" | "warn" | "error" levels
// and "json" | "console" formats. Sampling can be enabled to reduce noise in prod.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, _ := zerolog.ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" || dev {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		base = zerolog.New(out).With().Timestamp().Logger()
	} else {
		base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	if cfg.Sampling && !dev {
		// Keep first 100, then 1 every 100 thereafter.
		sampled := base.Sample(&zerolog.BasicSampler{N: 100})
		return &sampled
	}
	return &base
}

type ctxKey string

const (
	ctxReference ctxKey = "reference"
	ctxBuyerID   ctxKey = "buyer_id"
	ctxItemID    ctxKey = "item_id"
)

// With attaches common checkout context fields when present on ctx.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := base.With()
	if v := ctx.Value(ctxReference); v != nil {
		l = l.Str("reference", v.(string))
	}
	if v := ctx.Value(ctxBuyerID); v != nil {
		l = l.Str("buyer_id", v.(string))
	}
	if v := ctx.Value(ctxItemID); v != nil {
		l = l.Str("item_id", v.(string))
	}
	logger := l.Logger()
	return &logger
}

func WithReference(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, ctxReference, ref)
}
func WithBuyerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxBuyerID, id)
}
func WithItemID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxItemID, id)
}

// Redact hides PII (buyer emails mostly) when not in dev.
func Redact(s string, dev bool) string {
	if dev {
		return s
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-2:]
}
