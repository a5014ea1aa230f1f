package sysstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arcwave/relaycore/clock"
)

func boolProbe(active bool) Probe {
	return func(ctx context.Context) (bool, error) { return active, nil }
}

func TestEvaluateHealthySystemLeavesRequestedUnchanged(t *testing.T) {
	d := NewDetector(map[Signal]Probe{
		SignalCIFailing:    boolProbe(false),
		SignalServerDown:   boolProbe(false),
		SignalOpenP0:       boolProbe(false),
		SignalDiskPressure: boolProbe(false),
	}, time.Minute, clock.NewFake(time.Unix(0, 0)))

	if got := d.Evaluate(context.Background(), ActionRun); got != ActionRun {
		t.Fatalf("expected healthy system to leave requested action unchanged, got %s", got)
	}
}

func TestEvaluateSkipWinsOverBoost(t *testing.T) {
	d := NewDetector(map[Signal]Probe{
		SignalCIFailing:  boolProbe(true),
		SignalServerDown: boolProbe(true),
	}, time.Minute, clock.NewFake(time.Unix(0, 0)))

	if got := d.Evaluate(context.Background(), ActionRun); got != ActionSkip {
		t.Fatalf("expected skip to win over boost, got %s", got)
	}
}

func TestEvaluateBoostWhenOnlyBoostSignalsActive(t *testing.T) {
	d := NewDetector(map[Signal]Probe{
		SignalCIFailing:  boolProbe(true),
		SignalServerDown: boolProbe(false),
	}, time.Minute, clock.NewFake(time.Unix(0, 0)))

	if got := d.Evaluate(context.Background(), ActionRun); got != ActionBoost {
		t.Fatalf("expected boost when only a boost signal is active, got %s", got)
	}
}

func TestSignalsAreCachedWithinTTL(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	calls := 0
	d := NewDetector(map[Signal]Probe{
		SignalCIFailing: func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		},
	}, time.Minute, fake)

	d.Evaluate(context.Background(), ActionRun)
	d.Evaluate(context.Background(), ActionRun)
	if calls != 1 {
		t.Fatalf("expected probes to run once within the TTL window, ran %d times", calls)
	}

	fake.Advance(2 * time.Minute)
	d.Evaluate(context.Background(), ActionRun)
	if calls != 2 {
		t.Fatalf("expected probes to re-run after TTL expiry, ran %d times", calls)
	}
}

func TestInvalidateCacheForcesRerun(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	calls := 0
	d := NewDetector(map[Signal]Probe{
		SignalCIFailing: func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		},
	}, time.Minute, fake)

	d.Evaluate(context.Background(), ActionRun)
	d.InvalidateCache()
	d.Evaluate(context.Background(), ActionRun)
	if calls != 2 {
		t.Fatalf("expected InvalidateCache to force a fresh probe run, ran %d times", calls)
	}
}

func TestProbeErrorIsTreatedAsInactive(t *testing.T) {
	d := NewDetector(map[Signal]Probe{
		SignalServerDown: func(ctx context.Context) (bool, error) {
			return true, errors.New("probe unreachable")
		},
	}, time.Minute, clock.NewFake(time.Unix(0, 0)))

	if got := d.Evaluate(context.Background(), ActionRun); got != ActionRun {
		t.Fatalf("expected a failing probe to be treated as inactive, got %s", got)
	}
}
