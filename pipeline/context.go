// Package pipeline implements the Koa-style onion dispatcher that is the
// request-handling core's entry point: an ordered stack of middleware
// stages run against a shared context, with downstream/upstream phases,
// abort semantics, and synthesized-500 error handling.
package pipeline

import (
	"net/url"
	"time"
)

// Role is the authenticated caller's role, when known.
type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const defaultTenant = "default"

// RequestContext is the per-request mutable record described in spec
// section 3. It is created once at pipeline entry and owned exclusively
// by the dispatcher; stages mutate it in place.
type RequestContext struct {
	URL    string
	Method string
	Parsed *url.URL

	Authenticated bool
	Role          Role
	WalletKey     string
	TenantID      string

	Headers          map[string]string
	RateLimitHeaders map[string]string
}

// NewRequestContext builds a RequestContext for an incoming request.
func NewRequestContext(method, rawURL string, headers map[string]string) *RequestContext {
	parsed, _ := url.Parse(rawURL)
	if headers == nil {
		headers = make(map[string]string)
	}
	return &RequestContext{
		URL:              rawURL,
		Method:           method,
		Parsed:           parsed,
		TenantID:         defaultTenant,
		Headers:          headers,
		RateLimitHeaders: make(map[string]string),
	}
}

// Response is the response a stage may assign to ctx.Response.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Context wraps a RequestContext and adds the pipeline's own bookkeeping:
// the response slot, an opaque cross-stage state map, the start time, and
// the aborted flag. Per spec invariant (c), State is never read by code
// outside the pipeline.
type Context struct {
	Request *RequestContext

	Response *Response
	// Headers accumulates outbound headers contributed by any stage (CORS,
	// rate-limit, etc); merged into the final response regardless of which
	// stage ultimately set ctx.Response.
	Headers map[string]string
	State   map[string]interface{}
	Start   time.Time
	Aborted bool

	// err holds an in-flight panic/error recovered by execute, exposed to
	// the error-handler stage via Context.Err().
	err error
}

// NewContext wraps req in a fresh pipeline Context.
func NewContext(req *RequestContext) *Context {
	return &Context{
		Request: req,
		Headers: make(map[string]string),
		State:   make(map[string]interface{}),
		Start:   time.Now(),
	}
}

// Err returns the error recovered from a downstream panic, if any.
func (c *Context) Err() error { return c.err }

// Abort marks the context as aborted; no further downstream stage runs.
func (c *Context) Abort() { c.Aborted = true }
