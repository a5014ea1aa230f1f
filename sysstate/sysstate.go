// Package sysstate implements the system-state detector of spec section
// 4.8: independent concurrent signal probes, a cached TTL result, and the
// skip/boost/run priority rules used to decide whether a scheduled action
// should run.
//
// Grounded on teacher provider/provider.go's Registry.HealthCheckAll
// (sync.WaitGroup fan-out across providers, mutex-guarded result map) for
// the concurrent-probe-then-join shape.
package sysstate

import (
	"context"
	"sync"
	"time"

	"github.com/arcwave/relaycore/clock"
)

// Signal is one independent system-health dimension.
type Signal string

const (
	SignalCIFailing    Signal = "ci_failing"
	SignalServerDown   Signal = "server_unhealthy"
	SignalOpenP0       Signal = "open_p0_issues"
	SignalDiskPressure Signal = "disk_pressure"
)

// Action a caller wants evaluated against the current system state.
type Action string

const (
	ActionSkip Action = "skip"
	ActionBoost Action = "boost"
	ActionRun   Action = "run"
)

// Probe evaluates one signal, returning true if the signal is currently
// active (e.g. CI is failing, disk usage is at or above 90%).
type Probe func(ctx context.Context) (bool, error)

// diskPressureThreshold is the disk-usage fraction spec 4.8 names.
const diskPressureThreshold = 0.90

// signalActionMap is the compile-time priority table: for each action
// category, which signals cause it to be skipped vs. boosted. Skip always
// wins over boost when a signal triggers both lists for the same action,
// and a fully healthy system (no active signals) contributes nothing,
// leaving the caller's requested action unchanged.
var signalActionMap = map[Action][]Signal{
	ActionSkip:  {SignalServerDown, SignalDiskPressure},
	ActionBoost: {SignalCIFailing, SignalOpenP0},
}

// Detector runs the independent probes concurrently and caches the
// combined result for a TTL window.
type Detector struct {
	probes map[Signal]Probe
	ttl    time.Duration
	clock  clock.Clock

	mu        sync.Mutex
	cached    map[Signal]bool
	cachedAt  time.Time
	hasCached bool
}

// defaultTTL is the cache window spec 4.8 names.
const defaultTTL = 60 * time.Second

// NewDetector builds a detector over the given probe set. A zero or
// negative ttl uses the spec default of 60s.
func NewDetector(probes map[Signal]Probe, ttl time.Duration, c clock.Clock) *Detector {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if c == nil {
		c = clock.Real()
	}
	return &Detector{probes: probes, ttl: ttl, clock: c}
}

// InvalidateCache forces the next Evaluate call to re-run every probe.
func (d *Detector) InvalidateCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasCached = false
}

// signals runs every probe concurrently, fanning out then joining, and
// returns the cached result if still within the TTL window.
func (d *Detector) signals(ctx context.Context) map[Signal]bool {
	d.mu.Lock()
	if d.hasCached && d.clock.Now().Sub(d.cachedAt) < d.ttl {
		result := d.cached
		d.mu.Unlock()
		return result
	}
	d.mu.Unlock()

	results := make(map[Signal]bool, len(d.probes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for sig, probe := range d.probes {
		wg.Add(1)
		go func(sig Signal, probe Probe) {
			defer wg.Done()
			active, err := probe(ctx)
			if err != nil {
				active = false
			}
			mu.Lock()
			results[sig] = active
			mu.Unlock()
		}(sig, probe)
	}
	wg.Wait()

	d.mu.Lock()
	d.cached = results
	d.cachedAt = d.clock.Now()
	d.hasCached = true
	d.mu.Unlock()
	return results
}

// Evaluate decides how requested should be treated given current system
// state: skip wins over boost, and a signal-free (healthy) system leaves
// requested untouched.
func (d *Detector) Evaluate(ctx context.Context, requested Action) Action {
	active := d.signals(ctx)

	for _, sig := range signalActionMap[ActionSkip] {
		if active[sig] {
			return ActionSkip
		}
	}
	for _, sig := range signalActionMap[ActionBoost] {
		if active[sig] {
			return ActionBoost
		}
	}
	return requested
}

// ActiveSignals returns the current (possibly cached) raw signal map, for
// observability.
func (d *Detector) ActiveSignals(ctx context.Context) map[Signal]bool {
	return d.signals(ctx)
}
