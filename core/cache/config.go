package cache

import "time"

// Config holds configuration for the shared artifact cache.
type Config struct {
	// MaxBytes is the cache byte budget. Default: 32 MiB.
	MaxBytes int64 `mapstructure:"max_bytes" default:"33554432"`
	// TTLSeconds is the entry time-to-live in seconds. A hit refreshes it.
	TTLSeconds int `mapstructure:"ttl_seconds" default:"300"`
}

// TTLDuration returns the entry TTL as a duration.
func (c Config) TTLDuration() time.Duration {
	if c.TTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}
