package quota

import "time"

// Config holds configuration for the shared rate limiter and circuit breaker.
type Config struct {
	// RequestsPerWindow is the request budget per window.
	RequestsPerWindow int `mapstructure:"requests_per_window" default:"60"`
	// WindowSeconds is the length of the rate window in seconds.
	WindowSeconds int `mapstructure:"window_seconds" default:"60"`
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int `mapstructure:"failure_threshold" default:"5"`
	// CooldownSeconds is how long the circuit stays open before probing.
	CooldownSeconds int `mapstructure:"cooldown_seconds" default:"30"`
}

// WindowDuration returns the rate window as a duration.
func (c Config) WindowDuration() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// CooldownDuration returns the circuit cooldown as a duration.
func (c Config) CooldownDuration() time.Duration {
	if c.CooldownSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CooldownSeconds) * time.Second
}
