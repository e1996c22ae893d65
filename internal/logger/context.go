package logger

import "context"

type contextKey string

const TraceIDKey contextKey = "trace_id"
const ThreadIDKey contextKey = "thread_id"

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

func WithThreadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ThreadIDKey, id)
}

func GetThreadID(ctx context.Context) string {
	if id, ok := ctx.Value(ThreadIDKey).(string); ok {
		return id
	}
	return ""
}
