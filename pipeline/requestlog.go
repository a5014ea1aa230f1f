package pipeline

import (
	"time"

	"github.com/rs/zerolog"
)

// NewRequestLogStage logs method/path/status/duration once the request
// completes, grounded on teacher router.go's mwRequestLogger (start timer
// downstream, emit status+duration upstream) generalized into the
// pipeline's own downstream/upstream phases.
func NewRequestLogStage(log zerolog.Logger) StageFunc {
	return func(ctx *Context, next Next) {
		start := time.Now()
		next()
		status := 0
		if ctx.Response != nil {
			status = ctx.Response.Status
		}
		log.Info().
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	}
}
