package logger

import (
	"context"
	"fmt"
	"go/build"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// SetupSLog configures logging handler with the given format (json or text)
// and which strips common prefix from file paths (rootPath param)
func SetupSLog(lvl slog.Level, format, rootPath string, requestIdKey any) error {
	h, err := NewHandler(os.Stderr, lvl, format, rootPath, requestIdKey)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(h))
	return nil
}

func NewHandler(w io.Writer, lvl slog.Level, format, rootPath string, requestIdKey any) (slog.Handler, error) {
	ho := slog.HandlerOptions{
		Level: lvl,
	}

	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, &ho)
	case "text", "":
		h = slog.NewTextHandler(w, &ho)
	default:
		return nil, fmt.Errorf("log format must be json or text, got %q", format)
	}

	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		gopath = build.Default.GOPATH
	}

	return &handler{
		baseHandler:  h,
		rootPath:     strings.TrimSuffix(rootPath, "/") + "/",
		goPath:       strings.TrimSuffix(gopath, "/") + "/",
		requestIdKey: requestIdKey,
	}, nil
}

// ParseLevel accepts debug, info, warn and error
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}

	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("parsing log level: %w", err)
	}

	return lvl, nil
}

type handler struct {
	baseHandler  slog.Handler
	rootPath     string
	goPath       string
	requestIdKey any
}

func (e *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return e.baseHandler.Enabled(ctx, level)
}

func (e *handler) Handle(ctx context.Context, record slog.Record) error {
	record = record.Clone()

	if record.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := fs.Next()
		file := f.File
		if strings.HasPrefix(file, e.rootPath) {
			file = file[len(e.rootPath):]
		} else if strings.HasPrefix(file, e.goPath) {
			file = file[len(e.goPath):]
		}
		record.AddAttrs(slog.Any(slog.SourceKey, &slog.Source{
			Function: f.Function,
			File:     file,
			Line:     f.Line,
		}))
	}

	if e.requestIdKey != nil {
		if requestId, ok := ctx.Value(e.requestIdKey).(string); ok && requestId != "" {
			record.AddAttrs(slog.String("request_id", requestId))
		}
	}

	return e.baseHandler.Handle(ctx, record)
}

func (e *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *e
	c.baseHandler = e.baseHandler.WithAttrs(attrs)
	return &c
}

func (e *handler) WithGroup(name string) slog.Handler {
	c := *e
	c.baseHandler = e.baseHandler.WithGroup(name)
	return &c
}
