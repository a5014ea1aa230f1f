package pipeline

import (
	"strconv"

	"github.com/arcwave/relaycore/ratelimit"
)

// exemptPaths is the default set of paths exempt from both limiters,
// per spec section 4.3.
var exemptPaths = map[string]bool{
	"/api/health":                  true,
	"/webhooks/github":             true,
	"/ws":                          true,
	"/.well-known/agent-card.json": true,
}

func isExempt(path string) bool { return exemptPaths[path] }

func applyRateLimitHeaders(ctx *Context, r ratelimit.Result) {
	ctx.Headers["X-RateLimit-Limit"] = strconv.Itoa(r.Limit)
	ctx.Headers["X-RateLimit-Remaining"] = strconv.Itoa(r.Remaining)
	ctx.Headers["X-RateLimit-Reset"] = strconv.FormatInt(r.ResetUnix, 10)
}

// NewGlobalRateLimitStage wraps ratelimit.GlobalLimiter as the order=100
// stage: 429 short-circuit with Retry-After, or headers + pass-through.
func NewGlobalRateLimitStage(limiter *ratelimit.GlobalLimiter) StageFunc {
	return func(ctx *Context, next Next) {
		if ctx.Request.Parsed != nil && isExempt(ctx.Request.Parsed.Path) {
			next()
			return
		}

		key := ctx.Request.WalletKey
		if key == "" {
			key = ctx.Request.TenantID
		}
		bucket := ratelimit.BucketForMethod(ctx.Request.Method)
		result := limiter.Check(key, bucket)
		applyRateLimitHeaders(ctx, result)

		if !result.Allowed {
			ctx.Headers["Retry-After"] = strconv.Itoa(result.RetryAfter)
			ctx.Response = &Response{Status: 429, Headers: map[string]string{}}
			ctx.Abort()
			return
		}
		next()
	}
}

// NewEndpointRateLimitStage wraps ratelimit.EndpointLimiter as the
// order=115 stage.
func NewEndpointRateLimitStage(limiter *ratelimit.EndpointLimiter) StageFunc {
	return func(ctx *Context, next Next) {
		if ctx.Request.Parsed == nil || isExempt(ctx.Request.Parsed.Path) {
			next()
			return
		}

		key := ctx.Request.WalletKey
		if key == "" {
			key = ctx.Request.TenantID
		}
		tier := ratelimit.TierFor(ctx.Request.Authenticated, ctx.Request.Role == RoleAdmin)
		discriminator := ratelimit.BucketForMethod(ctx.Request.Method)
		result := limiter.Check(key, ctx.Request.Method, ctx.Request.Parsed.Path, tier, discriminator)
		applyRateLimitHeaders(ctx, result)

		if !result.Allowed {
			ctx.Headers["Retry-After"] = strconv.Itoa(result.RetryAfter)
			ctx.Response = &Response{Status: 429, Headers: map[string]string{}}
			ctx.Abort()
			return
		}
		next()
	}
}
