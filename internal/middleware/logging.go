package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/S1riyS/drive-core/server/pkg/httpjson"
	"github.com/S1riyS/drive-core/server/pkg/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging puts logger into the request context, logs every finished request
// and turns handler panics into a 500.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ctx := logging.MakeContextWithLogger(r.Context(), logger)
			r = r.WithContext(ctx)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				reqLogger := logging.GetLoggerFromContext(r.Context())
				if p := recover(); p != nil {
					reqLogger.Error("Handler panicked", slog.Any("panic", p))
					rec.status = http.StatusInternalServerError
					_ = httpjson.Error(rec, http.StatusInternalServerError, "internal", "internal error")
				}
				reqLogger.Info("Request handled",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", rec.status),
					slog.Duration("duration", time.Since(started)))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
