package logger

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
)

// NewPGXTracer routes pgx query logs into slog. Query args are dropped so
// request payloads never reach the log.
func NewPGXTracer() *tracelog.TraceLog {
	return newPGXTracer(slog.Default())
}

func newPGXTracer(logger *slog.Logger) *tracelog.TraceLog {
	return &tracelog.TraceLog{
		Logger: tracelog.LoggerFunc(func(ctx context.Context, l tracelog.LogLevel, msg string, data map[string]any) {
			attrs := pgxAttrs(data)

			lvl, ok := slogLevel(l)
			if !ok {
				attrs = append(attrs, slog.Any("INVALID_PGX_LOG_LEVEL", l))
			}

			if !logger.Enabled(ctx, lvl) {
				return
			}

			var pcs [1]uintptr
			// skip [runtime.Callers, this function, this function's caller * 3]
			runtime.Callers(5, pcs[:])

			r := slog.NewRecord(time.Now(), lvl, msg, pcs[0])
			r.AddAttrs(attrs...)
			_ = logger.Handler().Handle(ctx, r)
		}),
		LogLevel: tracelog.LogLevelDebug,
	}
}

func pgxAttrs(data map[string]any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(data))
	for k, v := range data {
		switch k {
		case "args", "pid":
		default:
			attrs = append(attrs, slog.Any(k, v))
		}
	}

	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})

	return attrs
}

// slogLevel demotes pgx info chatter to debug
func slogLevel(l tracelog.LogLevel) (slog.Level, bool) {
	switch l {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug, tracelog.LogLevelInfo:
		return slog.LevelDebug, true
	case tracelog.LogLevelWarn:
		return slog.LevelWarn, true
	case tracelog.LogLevelError:
		return slog.LevelError, true
	default:
		return slog.LevelError, false
	}
}
