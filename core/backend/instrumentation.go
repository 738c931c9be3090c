package backend

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/bizjuned/conversational-ai-assistant/core/backend"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var malformedEvents, _ = meter.Int64Counter(
	"session.downlink.malformed_events",
	metric.WithDescription("Downlink payloads that could not be decoded and were dropped."),
)
