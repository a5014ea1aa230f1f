package pipeline

import "github.com/rs/zerolog"

// NewErrorHandlerStage catches any panic unwound by a downstream stage and,
// only if no response has been set, synthesizes the 500 body required by
// spec sections 4.1/7: {"error": "Internal server error", "timestamp": ...}.
// It never overwrites an existing response, and it absorbs the panic so
// stages upstream of it see a normal return.
func NewErrorHandlerStage(log zerolog.Logger) StageFunc {
	return func(ctx *Context, next Next) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("path", ctx.Request.URL).
					Interface("panic", r).
					Msg("unhandled pipeline error")
				if ctx.Response == nil {
					ctx.Response = synthesize500()
				}
			}
		}()
		next()
	}
}
