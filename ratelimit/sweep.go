package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// defaultSweepInterval is the minimum sweep cadence required by spec
// section 4.3 ("the sweep cadence is at least 5 minutes").
const defaultSweepInterval = 5 * time.Minute

// Sweeper periodically drops stale buckets from both limiters. Grounded on
// teacher provider/healthpoller.go's ticker/context-cancel/done-channel
// idiom, so the timer never prevents process exit.
type Sweeper struct {
	global    *GlobalLimiter
	endpoint  *EndpointLimiter
	maxWindow time.Duration
	interval  time.Duration
	logger    zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper builds a sweeper over both limiters. maxWindow is the largest
// configured window across both limiters' rules.
func NewSweeper(global *GlobalLimiter, endpoint *EndpointLimiter, maxWindow time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		global:    global,
		endpoint:  endpoint,
		maxWindow: maxWindow,
		interval:  defaultSweepInterval,
		logger:    logger.With().Str("component", "ratelimit_sweeper").Logger(),
		done:      make(chan struct{}),
	}
}

// Start begins the background sweep loop as a goroutine that does not
// prevent process exit; call Stop to shut it down.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.loop(ctx)
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.global.Sweep(s.maxWindow)
			s.endpoint.Sweep(s.maxWindow)
			s.logger.Debug().Msg("rate limit bucket sweep complete")
		}
	}
}
