package batch

import "time"

// Config holds compiler tuning. Zero values fall back to safe defaults so a
// partially populated config never produces a compiler that cannot retry.
type Config struct {
	// BatchCap is the remote's hard limit on sub-operations per call.
	BatchCap int
	// MaxAttempts is the retry ceiling per batch, first try included.
	MaxAttempts int
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
}

func (c Config) batchCap() int {
	if c.BatchCap < 1 {
		return 100
	}
	return c.BatchCap
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
