package sheets

import "time"

// Config holds configuration for the sheets feature.
type Config struct {
	// Enabled toggles the feature's HTTP surface.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Parallelism caps concurrent remote calls process-wide.
	Parallelism int `mapstructure:"parallelism" default:"4"`
	// MaxAttempts is the retry ceiling per remote call, first try included.
	MaxAttempts int `mapstructure:"max_attempts" default:"4"`
	// BackoffMS is the first retry delay in milliseconds; it doubles per attempt.
	BackoffMS int `mapstructure:"backoff_ms" default:"250"`
	// SnapshotPrefix is the object-name prefix for archived baselines.
	SnapshotPrefix string `mapstructure:"snapshot_prefix" default:"baselines"`
}

// GateLimit returns the effective concurrency limit.
func (c Config) GateLimit() int {
	if c.Parallelism < 1 {
		return 4
	}
	return c.Parallelism
}

// Backoff returns the first retry delay as a duration.
func (c Config) Backoff() time.Duration {
	if c.BackoffMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.BackoffMS) * time.Millisecond
}
