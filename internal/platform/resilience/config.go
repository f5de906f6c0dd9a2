package resilience

import "time"

const (
	defaultFailureThreshold = 3
	defaultOpenTimeout      = 2 * time.Minute
	defaultHalfOpenMaxReq   = 1
)

type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
	// Trips decides which errors count against the breaker. Errors it rejects
	// are returned to the caller but treated as a healthy round trip. Nil
	// counts every error.
	Trips func(error) bool
}

// DefaultCircuitBreakerConfig suits slow page fetches: a few failed cycles
// open the breaker for a couple of scrape intervals.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: defaultFailureThreshold,
		OpenTimeout:      defaultOpenTimeout,
		HalfOpenMaxReq:   defaultHalfOpenMaxReq,
	}
}

func NormalizeCircuitBreakerConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.HalfOpenMaxReq < 1 {
		cfg.HalfOpenMaxReq = defaultHalfOpenMaxReq
	}
	if cfg.Trips == nil {
		cfg.Trips = func(err error) bool { return err != nil }
	}
	return cfg
}
