package breaker

import (
	"context"
	"time"

	"chatcore/pkg/logger"

	"github.com/sony/gobreaker"
)

// Config allows custom settings for specific breakers
type Config struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	Threshold   float64
	MinRequests uint32
}

// New creates a new CircuitBreaker with sensible defaults
func New(cfg Config) *gobreaker.CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 5 // Half-open max requests
	}
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second // Clear counts interval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second // Open state duration
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.Threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker '%s' changed state from %s to %s", name, from.String(), to.String())
		},
	}

	return gobreaker.NewCircuitBreaker(settings)
}

// ExecuteCtx runs fn through the breaker, honoring context cancellation
func ExecuteCtx(ctx context.Context, cb *gobreaker.CircuitBreaker, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cb.Execute(fn)
}
