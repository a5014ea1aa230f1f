package pipeline

import "strings"

// corsAllowMethods and corsAllowHeaders satisfy spec section 6's
// requirement that the methods/headers lists always include the named
// values; grounded on teacher middleware/cors.go's CORSMiddleware, which
// set the same two headers unconditionally.
const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization"
)

// CORSConfig is the allow-list driving the CORS stage's three-way policy.
type CORSConfig struct {
	// AllowedOrigins is the configured allow-list. Empty means "no
	// allow-list configured" — the stage echoes "*".
	AllowedOrigins []string
}

func (c CORSConfig) matches(origin string) bool {
	for _, o := range c.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// NewCORSStage builds the CORS stage per spec section 4.2: echo "*" with
// no allow-list, echo the matched origin with Vary: Origin when
// allow-listed, or emit an empty allow-origin on mismatch. OPTIONS
// preflight requests are short-circuited with a 204 and do not advance
// downstream.
func NewCORSStage(cfg CORSConfig) StageFunc {
	return func(ctx *Context, next Next) {
		origin := ctx.Request.Headers["Origin"]

		ctx.Headers["Access-Control-Allow-Methods"] = corsAllowMethods
		ctx.Headers["Access-Control-Allow-Headers"] = corsAllowHeaders

		switch {
		case len(cfg.AllowedOrigins) == 0:
			ctx.Headers["Access-Control-Allow-Origin"] = "*"
		case cfg.matches(origin):
			ctx.Headers["Access-Control-Allow-Origin"] = origin
			ctx.Headers["Vary"] = "Origin"
		default:
			ctx.Headers["Access-Control-Allow-Origin"] = ""
		}

		if strings.EqualFold(ctx.Request.Method, "OPTIONS") {
			ctx.Response = &Response{Status: 204, Headers: map[string]string{}}
			ctx.Abort()
			return
		}

		next()
	}
}
