package adapters

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

type spanLoggerKey struct{}

// ZerologTracer logs executor spans and events. Span attributes are carried
// on a child logger stored in the context, so events inside a span inherit
// them.
type ZerologTracer struct {
	logger zerolog.Logger
}

func NewZerologTracer(logger zerolog.Logger) *ZerologTracer {
	return &ZerologTracer{logger: logger}
}

func (t *ZerologTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	lc := t.fromContext(ctx).With().Str("span", name)
	for k, v := range attrs {
		lc = lc.Interface(k, v)
	}
	spanLogger := lc.Logger()
	ctx = context.WithValue(ctx, spanLoggerKey{}, spanLogger)

	start := time.Now()
	spanLogger.Debug().Str("event", "span_start").Msg("span started")

	return ctx, func(err error) {
		event := spanLogger.Debug()
		if err != nil {
			event = spanLogger.Info().Err(err)
		}
		event.Str("event", "span_end").Dur("duration", time.Since(start)).Msg("span finished")
	}
}

func (t *ZerologTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	logger := t.fromContext(ctx)
	event := logger.Debug()
	for k, v := range attrs {
		event = event.Interface(k, v)
	}
	event.Str("event", name).Msg("trace event")
}

func (t *ZerologTracer) fromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(spanLoggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return t.logger
}

var _ ports.Tracer = (*ZerologTracer)(nil)
