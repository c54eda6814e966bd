package diff

import "time"

// Config holds diff engine tuning. Zero values fall back to the same
// defaults the batch compiler uses.
type Config struct {
	// MaxAttempts is the retry ceiling per remote call, first try included.
	MaxAttempts int
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts < 1 {
		return 4
	}
	return c.MaxAttempts
}

func (c Config) backoffBase() time.Duration {
	if c.BackoffBase <= 0 {
		return 250 * time.Millisecond
	}
	return c.BackoffBase
}
