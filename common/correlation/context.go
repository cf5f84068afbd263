package correlation

import (
	"context"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/google/uuid"

	"github.com/rainbow-me/platform-lifecycle/common/logger"
)

// HeaderXRequestID carries the request identifier across process boundaries.
const HeaderXRequestID = "x-request-id"

// IDKey is the log field name the request identifier appears under.
const IDKey = "request_id"

// requestIDContextKey is a private type for context keys to avoid collisions
type requestIDContextKey struct{}

// ContextWithRequestID stores the request identifier on the context and on
// the context logger, so every log line emitted while handling the request
// carries it. A missing identifier is replaced with a freshly generated one.
// When an active span is present the identifier is also attached as a
// baggage item for distributed tracing.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}

	if span, ok := tracer.SpanFromContext(ctx); ok {
		span.SetBaggageItem(IDKey, id)
	}

	ctx = context.WithValue(ctx, requestIDContextKey{}, id)
	return logger.ContextWithFields(ctx, []logger.Field{logger.String(IDKey, id)})
}

// RequestID returns the request identifier stored on the context, or the
// empty string when none was set.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
