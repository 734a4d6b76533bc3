package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/ruleflow/pkg/telemetry/logging"
)

// RequestIDHeader is the HTTP header for request ids.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an id. A client-supplied X-Request-ID
// is reused, otherwise a UUID is generated. The id is echoed in the
// response header and stored in the context, where the logging handler
// picks it up.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
