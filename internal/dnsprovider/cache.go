package dnsprovider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AppFinder resolves an app by name.
type AppFinder interface {
	FindApp(ctx context.Context, name string) (*App, error)
}

// AppLookupCache caches the id of the provider app that platform subdomains
// attach to. The entry is refreshed after ttl, or as soon as the app's IP no
// longer matches the platform IP.
type AppLookupCache struct {
	finder     AppFinder
	appName    string
	expectedIP string
	ttl        time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	mu    sync.Mutex
	entry *cacheEntry
}

type cacheEntry struct {
	app       App
	fetchedAt time.Time
}

func NewAppLookupCache(finder AppFinder, appName, expectedIP string, ttl time.Duration, logger zerolog.Logger) *AppLookupCache {
	return &AppLookupCache{
		finder:     finder,
		appName:    appName,
		expectedIP: expectedIP,
		ttl:        ttl,
		now:        time.Now,
		logger:     logger.With().Str("component", "app-lookup-cache").Logger(),
	}
}

// needsRefresh decides whether a cached entry can still be used.
func needsRefresh(entry *cacheEntry, now time.Time, ttl time.Duration, expectedIP string) bool {
	if entry == nil {
		return true
	}
	if ttl <= 0 || now.Sub(entry.fetchedAt) >= ttl {
		return true
	}
	return expectedIP != "" && entry.app.IP != expectedIP
}

// Get returns the cached app, fetching it when the entry is missing, expired
// or points at the wrong IP.
func (c *AppLookupCache) Get(ctx context.Context) (App, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !needsRefresh(c.entry, now, c.ttl, c.expectedIP) {
		return c.entry.app, nil
	}

	app, err := c.finder.FindApp(ctx, c.appName)
	if err != nil {
		return App{}, err
	}
	if c.expectedIP != "" && app.IP != c.expectedIP {
		c.logger.Warn().Str("app", app.Name).Str("ip", app.IP).Str("expected_ip", c.expectedIP).
			Msg("provider app IP does not match platform IP")
	}
	c.entry = &cacheEntry{app: *app, fetchedAt: now}
	return *app, nil
}

// Invalidate drops the cached entry.
func (c *AppLookupCache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}
