package config

import "time"

// CacheConfig controls the Redis response cache in front of GET
// /v1/stats.  Seat maps and holds are never cached.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("STATS_CACHE_ENABLED", true),
		TTL:          envDur("STATS_CACHE_TTL", 5*time.Second),
		Prefix:       envStr("STATS_CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("STATS_CACHE_MAX_BODY_BYTES", 64<<10),
	}
	if cfg.TTL <= 0 {
		cfg.Enabled = false
	}
	return cfg
}
