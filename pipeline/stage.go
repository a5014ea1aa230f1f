package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Reserved order bands, per spec section 4.1.
const (
	OrderCORS          = 10
	OrderRequestLog    = 20
	OrderErrorHandler  = 30
	OrderRateLimit     = 100
	OrderAuth          = 110
	OrderEndpointLimit = 115
	OrderRole          = 120
	OrderRouteHandler  = 200
)

// Next invokes the next stage downstream. It must be called at most once
// per stage invocation; a second call fails the pipeline (see execute).
type Next func()

// StageFunc is a middleware stage: it may inspect/mutate ctx, invoke next
// at most once, set ctx.Response, or set ctx.Aborted to stop downstream
// traversal. Not calling next halts downstream traversal but the stage's
// own upstream code (after the next() call site, for stages that do call
// it) still runs for already-entered stages.
type StageFunc func(ctx *Context, next Next)

// Stage is a named, ordered middleware registration.
type Stage struct {
	Name  string
	Order int
	Run   StageFunc

	seq int // registration sequence, used to break Order ties
}

// Dispatcher runs a composed, ordered stack of stages against a Context.
type Dispatcher struct {
	stages  []Stage
	nextSeq int
	sorted  []Stage
	dirty   bool
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{dirty: true}
}

// Use registers a stage. Ties in Order are broken by registration order.
func (d *Dispatcher) Use(name string, order int, run StageFunc) {
	d.stages = append(d.stages, Stage{Name: name, Order: order, Run: run, seq: d.nextSeq})
	d.nextSeq++
	d.dirty = true
}

// Remove drops the named stage, if present.
func (d *Dispatcher) Remove(name string) {
	out := d.stages[:0]
	for _, s := range d.stages {
		if s.Name != name {
			out = append(out, s)
		}
	}
	d.stages = out
	d.dirty = true
}

// compose stable-sorts the registered stages by Order ascending, ties by
// registration sequence, and caches the result until the next mutation.
func (d *Dispatcher) compose() []Stage {
	if !d.dirty {
		return d.sorted
	}
	sorted := make([]Stage, len(d.stages))
	copy(sorted, d.stages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].seq < sorted[j].seq
	})
	d.sorted = sorted
	d.dirty = false
	return sorted
}

// nextCalledTwice is the panic value used to fail the pipeline when a
// stage invokes Next more than once.
type nextCalledTwice struct{ stage string }

func (e nextCalledTwice) Error() string {
	return fmt.Sprintf("pipeline: stage %q called next() more than once", e.stage)
}

// Execute runs the composed dispatcher against ctx. Any unhandled panic is
// recovered; if no response has been set by the time it unwinds, a
// synthesized 500 is assigned by Execute itself (belt-and-braces alongside
// the error-handler stage, which is expected to do the same closer to the
// point of failure).
func (d *Dispatcher) Execute(ctx *Context) {
	stages := d.compose()
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("pipeline: %v", r)
			}
			ctx.err = err
			if ctx.Response == nil {
				ctx.Response = synthesize500()
			}
		}
	}()
	runFrom(stages, 0, ctx)
}

func runFrom(stages []Stage, i int, ctx *Context) {
	if i >= len(stages) || ctx.Aborted {
		return
	}
	called := false
	next := Next(func() {
		if called {
			panic(nextCalledTwice{stage: stages[i].Name})
		}
		called = true
		if ctx.Aborted {
			return
		}
		runFrom(stages, i+1, ctx)
	})
	stages[i].Run(ctx, next)
}

func synthesize500() *Response {
	body, _ := json.Marshal(map[string]interface{}{
		"error":     "Internal server error",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	return &Response{
		Status:  500,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}
