package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/chatrelay-api/internal/api/shared"
	"github.com/phrazzld/chatrelay-api/internal/platform/logger"
)

// TraceMiddleware assigns each request a trace ID, echoes it in the
// X-Trace-ID response header and puts a trace-scoped logger in the context.
// A trace ID sent by the client is reused. It belongs early in the chain.
func TraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.WithTraceID(r.Context(), r.Header.Get(shared.TraceIDHeader))
			traceID := shared.GetTraceID(ctx)
			w.Header().Set(shared.TraceIDHeader, traceID)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
