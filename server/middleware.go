package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/platform-lifecycle/common/correlation"
)

// RequestIDMiddleware propagates the request identifier from the incoming
// header into the request context (generating one if absent) and echoes it
// on the response so callers can reference it.
func RequestIDMiddleware(c *gin.Context) {
	ctx := correlation.ContextWithRequestID(c.Request.Context(), c.GetHeader(correlation.HeaderXRequestID))

	c.Writer.Header().Set(correlation.HeaderXRequestID, correlation.RequestID(ctx))
	c.Request = c.Request.WithContext(ctx)
}

// withRequestID is the plain net/http flavor of RequestIDMiddleware, used on
// the production adapter's handler chain.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := correlation.ContextWithRequestID(r.Context(), r.Header.Get(correlation.HeaderXRequestID))

		w.Header().Set(correlation.HeaderXRequestID, correlation.RequestID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
