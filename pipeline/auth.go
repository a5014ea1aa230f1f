package pipeline

import "github.com/arcwave/relaycore/auth"

// AuthValidator is the subset of auth.Config the auth stage needs,
// narrowed to ease testing with a stub.
type AuthValidator interface {
	HasKey() bool
	Validate(presented string) bool
}

// NewAuthStage builds the auth stage per spec section 4.2: bearer-key
// validation with a public-path bypass. On success it sets
// ctx.Request.Authenticated (role assignment is left to the caller-supplied
// roleFor callback, since role membership — e.g. "this key is the admin
// key" — is a deployment concern outside this package).
func NewAuthStage(cfg AuthValidator, roleFor func(key string) Role) StageFunc {
	return func(ctx *Context, next Next) {
		if IsPublicPathCtx(ctx) {
			next()
			return
		}
		if !cfg.HasKey() {
			ctx.Request.Authenticated = true
			next()
			return
		}

		header := ctx.Request.Headers["Authorization"]
		key, ok := auth.ExtractBearer(header)
		if !ok || key == "" {
			ctx.Response = &Response{Status: 401, Headers: map[string]string{}}
			ctx.Abort()
			return
		}
		if !cfg.Validate(key) {
			ctx.Response = &Response{Status: 403, Headers: map[string]string{}}
			ctx.Abort()
			return
		}

		ctx.Request.Authenticated = true
		if roleFor != nil {
			ctx.Request.Role = roleFor(key)
		}
		next()
	}
}

// IsPublicPathCtx reports whether the current request's path bypasses auth.
func IsPublicPathCtx(ctx *Context) bool {
	if ctx.Request.Parsed == nil {
		return false
	}
	return auth.IsPublicPath(ctx.Request.Parsed.Path)
}

// NewRoleGuardStage returns a stage that denies with 403 unless the
// authenticated role is in allowed. requiredFor maps a path to the role it
// requires; paths with no entry are unguarded.
func NewRoleGuardStage(requiredFor func(path string) (Role, bool)) StageFunc {
	return func(ctx *Context, next Next) {
		if ctx.Request.Parsed != nil && requiredFor != nil {
			if required, needsGuard := requiredFor(ctx.Request.Parsed.Path); needsGuard {
				if ctx.Request.Role != required {
					ctx.Response = &Response{Status: 403, Headers: map[string]string{}}
					ctx.Abort()
					return
				}
			}
		}
		next()
	}
}
