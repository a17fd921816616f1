package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/S1riyS/drive-core/server/pkg/logging/slogpretty"
)

type ctxLoggerKey struct {
	Key string
}

var (
	cKey   = ctxLoggerKey{Key: "logger"}
	reqKey = ctxLoggerKey{Key: "request_id"}
)

// New builds the process logger. Pretty output is meant for local runs,
// everything else gets JSON.
func New(level string, pretty bool, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	if pretty {
		prettyOpts := slogpretty.PrettyHandlerOptions{SlogOpts: opts}
		return slog.New(prettyOpts.NewPrettyHandler(out))
	}

	return slog.New(slog.NewJSONHandler(out, opts))
}

// ParseLevel maps a config string to slog level, defaulting to info.
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

func GetLoggerFromContext(ctx context.Context) *slog.Logger {
	var l *slog.Logger

	logger := ctx.Value(cKey)
	if logger != nil {
		l = logger.(*slog.Logger)
	} else {
		// Default stdout logger
		l = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	// Always attach request ID from context if available
	requestID := GetRequestIDFromCtx(ctx)
	if requestID != "" {
		l = l.With(slog.String("request_id", requestID))
	}

	return l
}

// Returns logger from context and attaches operation name
func GetLoggerFromContextWithOp(ctx context.Context, op string) *slog.Logger {
	l := GetLoggerFromContext(ctx)

	// Attach operation
	l = l.With(slog.String("op", op))

	return l
}

func MakeContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, cKey, logger)
	return ctx
}

// Discard returns a logger that drops every record. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
