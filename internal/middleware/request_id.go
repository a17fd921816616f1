package middleware

import (
	"net/http"

	"github.com/S1riyS/drive-core/server/pkg/logging"
)

const RequestIDHeader = "X-Request-ID"

func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Check if request_id is already in context
		requestID := logging.GetRequestIDFromCtx(ctx)

		// If not in context, check X-Request-ID header
		if requestID == "" {
			requestID = r.Header.Get(RequestIDHeader)
		}

		// If still no request_id, generate a new one
		if requestID == "" {
			ctx = logging.MakeContextWithNewRequestID(ctx)
		} else {
			ctx = logging.MakeContextWithRequestID(ctx, requestID)
		}

		w.Header().Set(RequestIDHeader, logging.GetRequestIDFromCtx(ctx))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
