package trace

import (
	"github.com/rs/zerolog"
)

// LogTracer writes trace events as structured log records. Span ends carry
// the span duration; everything is logged at debug level except heartbeats,
// which go out at trace level.
type LogTracer struct {
	log   zerolog.Logger
	level Level
}

func NewLogTracer(log zerolog.Logger, level Level) *LogTracer {
	return &LogTracer{log: log.With().Str("component", "trace").Logger(), level: level}
}

func (t *LogTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	e := t.log.Debug()
	if ev.Kind == KindHeartbeat {
		e = t.log.Trace()
	}
	if !e.Enabled() {
		return
	}
	e = e.Str("kind", ev.Kind.String()).
		Str("scope", ev.Scope.String()).
		Uint64("span", ev.SpanID)
	if ev.ParentID != 0 {
		e = e.Uint64("parent", ev.ParentID)
	}
	if ev.Detail != "" {
		e = e.Str("detail", ev.Detail)
	}
	if len(ev.Extra) > 0 {
		e = e.Interface("extra", ev.Extra)
	}
	e.Msg(ev.Name)
}

func (t *LogTracer) Flush() error { return nil }
func (t *LogTracer) Close() error { return nil }
func (t *LogTracer) Level() Level { return t.level }

func (t *LogTracer) Enabled() bool { return t.level > LevelOff }
