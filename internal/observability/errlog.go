package observability

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the code and context
// travel as separate attributes instead of being flattened into the message.
func LogError(ctx context.Context, log *slog.Logger, msg string, err error, attrs ...any) {
	if log == nil {
		log = slog.Default()
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "err", oopsErr.Error(), "code", oopsErr.Code())
		if c := oopsErr.Context(); len(c) > 0 {
			attrs = append(attrs, "context", c)
		}
		log.ErrorContext(ctx, msg, attrs...)
		return
	}

	attrs = append(attrs, "err", err)
	log.ErrorContext(ctx, msg, attrs...)
}
