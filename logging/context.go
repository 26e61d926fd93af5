package logging

import "context"

type loggerKey struct{}

// WithLogger returns a copy of ctx that carries logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored by WithLogger. Without one it
// returns a logger that writes nothing.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return Discard()
}

// WithContextFields stores a child of the context logger carrying fields.
func WithContextFields(ctx context.Context, fields map[string]any) context.Context {
	return WithLogger(ctx, FromContext(ctx).WithFields(fields))
}
