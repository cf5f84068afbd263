package logger

import (
	"runtime/debug"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
)

const PanicValueKey = "panic_value"

// WithPanic builds the standard field set for a recovered panic, including
// the stack of the recovering goroutine.
func WithPanic(panicValue any) []Field {
	return []Field{
		Any(PanicValueKey, panicValue),
		ByteString("panic_stack", debug.Stack()),
	}
}

// WithTrace builds the correlation fields that tie a log entry to its trace.
func WithTrace(sc *tracer.SpanContext) []Field {
	if sc == nil {
		return nil
	}
	return []Field{
		String("dd.trace_id", sc.TraceID()),
		Uint64("dd.span_id", sc.SpanID()),
	}
}
