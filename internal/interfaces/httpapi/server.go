package httpapi

import (
	"net/http"

	"github.com/riskibarqy/oddsline/internal/platform/logging"
)

const adminTokenHeader = "X-Admin-Token"

// NewRouter builds the control surface. metrics may be nil when the
// prometheus endpoint is disabled.
func NewRouter(
	handler *Handler,
	logger *logging.Logger,
	corsAllowedOrigins []string,
	adminToken string,
	metrics http.Handler,
) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Named("http")

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler, metrics)
	registerScraperRoutes(mux, handler, adminToken)
	registerMatchRoutes(mux, handler, adminToken)
	registerTaskRoutes(mux, handler, adminToken)

	return RequestTracing(RequestLogging(logger, CORS(corsAllowedOrigins, recoverPanic(logger, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.recoverPanic")
		defer span.End()

		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec, "path", r.URL.Path)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
