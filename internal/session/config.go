package session

import "time"

const (
	DefaultLifespan       = 6 * time.Hour
	DefaultMemoryLifespan = 60 * time.Minute
	DefaultCookieName     = "session"
	DefaultCookiePath     = "/"
)

// Config holds the session store settings.
type Config struct {
	// Lifespan is the durable time-to-live, extended on every access.
	Lifespan time.Duration

	// MemoryLifespan is how long an idle session stays in memory. It also
	// throttles the in-memory sweep; Lifespan throttles the durable sweep.
	MemoryLifespan time.Duration

	CookieName    string
	CookiePath    string
	SecureCookies bool

	// ConcurrentLoads releases the map lock while a cache miss is loaded from
	// the backend, deduplicating loads per identifier instead of serializing
	// every miss behind one exclusive holder.
	ConcurrentLoads bool
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Lifespan:       DefaultLifespan,
		MemoryLifespan: DefaultMemoryLifespan,
		CookieName:     DefaultCookieName,
		CookiePath:     DefaultCookiePath,
	}
}

func (c Config) withDefaults() Config {
	if c.Lifespan <= 0 {
		c.Lifespan = DefaultLifespan
	}
	if c.MemoryLifespan <= 0 {
		c.MemoryLifespan = DefaultMemoryLifespan
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.CookiePath == "" {
		c.CookiePath = DefaultCookiePath
	}
	return c
}
