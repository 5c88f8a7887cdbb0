package config

import (
	"os"
	"time"
)

// CacheConfig controls the plot inventory cache.  When Enabled is
// false or no Redis client is available, reads go straight to the
// database.  TTL bounds how long an entry may serve before a reload;
// writes invalidate affected keys immediately regardless of TTL.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads cache settings from the environment, with
// defaults suited to minutes-scale staleness tolerance.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: getenv("CACHE_ENABLED", "true") == "true",
		TTL:     parseDur(getenv("CACHE_TTL", "5m")),
		Prefix:  getenv("CACHE_PREFIX", "plots"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Minute
	}
	return d
}
