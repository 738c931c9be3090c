package session

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/bizjuned/conversational-ai-assistant/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var degradedChunks, _ = meter.Int64Counter(
	"session.playback.degraded_chunks",
	metric.WithDescription("Playback chunks that failed to append and were skipped."),
)
