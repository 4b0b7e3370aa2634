package resilience

import (
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/config"
)

// Config tunes retries and circuit breaking for every guarded operation
// (extractor, classifier, NATS publish). Each operation gets its own breaker,
// and Operations may override the shared thresholds per operation name.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
	// BreakerWindow clears the closed-state counts, so failures older than
	// one window no longer count toward tripping.
	BreakerWindow time.Duration

	Operations map[string]OperationPolicy
}

// OperationPolicy overrides Config for a single operation. Zero fields
// inherit the shared value.
type OperationPolicy struct {
	RetryMaxAttempts    int
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

// DefaultConfig keeps total retry time well under one simulator tick budget.
//
// Extraction reads bytes already held in memory, so a second attempt sees the
// same input; it is never retried and only trips after a sustained run of
// failures, since every upload in the process shares its breaker. Broker
// outages outlast a model hiccup, so the relay stays open longer.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      15 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
		BreakerWindow:           time.Minute,

		Operations: map[string]OperationPolicy{
			OperationExtract: {
				RetryMaxAttempts:    1,
				BreakerMinRequests:  10,
				BreakerFailureRatio: 0.8,
				BreakerOpenTimeout:  5 * time.Second,
			},
			OperationClassify: {
				RetryMaxAttempts: 2,
			},
			OperationRelayPublish: {
				BreakerMinRequests: 3,
				BreakerOpenTimeout: 30 * time.Second,
			},
		},
	}
}

// FromAppConfig overlays the retry and breaker settings exposed through
// environment and YAML config onto DefaultConfig. Per-operation overrides
// from DefaultConfig still apply on top.
func FromAppConfig(cfg config.Config) Config {
	out := DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = cfg.RetryInitialBackoff
	out.RetryMaxBackoff = cfg.RetryMaxBackoff
	out.BreakerEnabled = cfg.BreakerEnabled
	return out.normalize()
}

// forOperation resolves the effective settings for one operation.
func (c Config) forOperation(operation string) Config {
	out := c
	out.Operations = nil

	p, ok := c.Operations[operation]
	if !ok {
		return out
	}
	if p.RetryMaxAttempts > 0 {
		out.RetryMaxAttempts = p.RetryMaxAttempts
	}
	if p.BreakerMinRequests > 0 {
		out.BreakerMinRequests = p.BreakerMinRequests
	}
	if p.BreakerFailureRatio > 0 && p.BreakerFailureRatio <= 1 {
		out.BreakerFailureRatio = p.BreakerFailureRatio
	}
	if p.BreakerOpenTimeout > 0 {
		out.BreakerOpenTimeout = p.BreakerOpenTimeout
	}
	return out
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	if out.BreakerWindow <= 0 {
		out.BreakerWindow = def.BreakerWindow
	}

	return out
}
