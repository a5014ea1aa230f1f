package pipeline

import (
	"reflect"
	"testing"
)

func newTestContext() *Context {
	return NewContext(NewRequestContext("GET", "/v1/models", nil))
}

// TestPipelineOrdering covers the onion dispatch order: stages run
// downstream in ascending Order, then unwind upstream in reverse.
func TestPipelineOrdering(t *testing.T) {
	var log []string

	d := NewDispatcher()
	d.Use("a", 30, func(ctx *Context, next Next) {
		log = append(log, "a:down")
		next()
		log = append(log, "a:up")
	})
	d.Use("b", 10, func(ctx *Context, next Next) {
		log = append(log, "b:down")
		next()
		log = append(log, "b:up")
	})
	d.Use("c", 20, func(ctx *Context, next Next) {
		log = append(log, "c:down")
		next()
		log = append(log, "c:up")
	})

	ctx := newTestContext()
	d.Execute(ctx)

	want := []string{"b:down", "c:down", "a:down", "a:up", "c:up", "b:up"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("got log %v, want %v", log, want)
	}
}

// TestPipelineAbortSemantics covers a stage that writes a response and
// does not call next: downstream stages must never run, and the
// upstream phase of every already-entered stage still unwinds.
func TestPipelineAbortSemantics(t *testing.T) {
	var log []string

	d := NewDispatcher()
	d.Use("first", 10, func(ctx *Context, next Next) {
		log = append(log, "first:down")
		next()
		log = append(log, "first:up")
	})
	d.Use("blocker", 20, func(ctx *Context, next Next) {
		log = append(log, "blocker:abort")
		ctx.Response = &Response{Status: 403, Body: []byte("forbidden")}
		ctx.Abort()
	})
	d.Use("never", 30, func(ctx *Context, next Next) {
		log = append(log, "never")
		next()
	})

	ctx := newTestContext()
	d.Execute(ctx)

	want := []string{"first:down", "blocker:abort", "first:up"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("got log %v, want %v", log, want)
	}
	if ctx.Response == nil || ctx.Response.Status != 403 {
		t.Fatalf("expected response status 403, got %+v", ctx.Response)
	}
}

// TestDoubleNextSynthesizes500 covers the double-next guard: a stage
// that calls next twice must not crash the process, and the dispatcher
// must synthesize a 500 when no response was set.
func TestDoubleNextSynthesizes500(t *testing.T) {
	d := NewDispatcher()
	d.Use("greedy", 10, func(ctx *Context, next Next) {
		next()
		next()
	})

	ctx := newTestContext()
	d.Execute(ctx)

	if ctx.Response == nil || ctx.Response.Status != 500 {
		t.Fatalf("expected synthesized 500 response, got %+v", ctx.Response)
	}
}

// TestStableOrderForEqualPriority covers the ordering invariant that
// stages registered at the same Order run in registration order.
func TestStableOrderForEqualPriority(t *testing.T) {
	var log []string

	d := NewDispatcher()
	d.Use("first", 100, func(ctx *Context, next Next) {
		log = append(log, "first")
		next()
	})
	d.Use("second", 100, func(ctx *Context, next Next) {
		log = append(log, "second")
		next()
	})

	ctx := newTestContext()
	d.Execute(ctx)

	want := []string{"first", "second"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("got log %v, want %v", log, want)
	}
}

// TestRemoveDropsStage covers Remove: a stage removed before Execute
// must not run at all.
func TestRemoveDropsStage(t *testing.T) {
	var log []string

	d := NewDispatcher()
	d.Use("keep", 10, func(ctx *Context, next Next) {
		log = append(log, "keep")
		next()
	})
	d.Use("drop", 20, func(ctx *Context, next Next) {
		log = append(log, "drop")
		next()
	})
	d.Remove("drop")

	ctx := newTestContext()
	d.Execute(ctx)

	want := []string{"keep"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("got log %v, want %v", log, want)
	}
}
