package eventbus

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

func traceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}

	return sc.TraceID().String()
}
