package dnsprovider

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/domains/internal/model"
)

type mockAppFinder struct {
	mock.Mock
}

func (m *mockAppFinder) FindApp(ctx context.Context, name string) (*App, error) {
	args := m.Called(ctx, name)
	if app := args.Get(0); app != nil {
		return app.(*App), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := &cacheEntry{app: App{ID: "a1", IP: "203.0.113.10"}, fetchedAt: now.Add(-time.Minute)}
	stale := &cacheEntry{app: App{ID: "a1", IP: "203.0.113.10"}, fetchedAt: now.Add(-time.Hour)}
	moved := &cacheEntry{app: App{ID: "a1", IP: "198.51.100.1"}, fetchedAt: now.Add(-time.Minute)}

	tests := []struct {
		name       string
		entry      *cacheEntry
		ttl        time.Duration
		expectedIP string
		want       bool
	}{
		{"empty", nil, time.Hour / 2, "203.0.113.10", true},
		{"fresh", fresh, time.Hour / 2, "203.0.113.10", false},
		{"expired", stale, time.Hour / 2, "203.0.113.10", true},
		{"ip mismatch", moved, time.Hour / 2, "203.0.113.10", true},
		{"ip not checked", moved, time.Hour / 2, "", false},
		{"zero ttl", fresh, 0, "203.0.113.10", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, needsRefresh(tt.entry, now, tt.ttl, tt.expectedIP))
		})
	}
}

func TestAppLookupCache_Get(t *testing.T) {
	finder := &mockAppFinder{}
	finder.On("FindApp", mock.Anything, "storefront").
		Return(&App{ID: "a1", Name: "storefront", IP: "203.0.113.10"}, nil).Twice()

	cache := NewAppLookupCache(finder, "storefront", "203.0.113.10", 10*time.Minute, zerolog.Nop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	app, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1", app.ID)

	now = now.Add(5 * time.Minute)
	_, err = cache.Get(ctx)
	require.NoError(t, err)
	finder.AssertNumberOfCalls(t, "FindApp", 1)

	now = now.Add(10 * time.Minute)
	_, err = cache.Get(ctx)
	require.NoError(t, err)
	finder.AssertNumberOfCalls(t, "FindApp", 2)
}

func TestAppLookupCache_Invalidate(t *testing.T) {
	finder := &mockAppFinder{}
	finder.On("FindApp", mock.Anything, "storefront").
		Return(&App{ID: "a1", Name: "storefront", IP: "203.0.113.10"}, nil)

	cache := NewAppLookupCache(finder, "storefront", "203.0.113.10", time.Hour, zerolog.Nop())
	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	cache.Invalidate()
	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	finder.AssertNumberOfCalls(t, "FindApp", 2)
}

func TestAppDomains(t *testing.T) {
	f, c := newFakeProvider(t)
	f.apps = []App{{ID: "app-1", Name: "storefront", IP: "203.0.113.10"}}
	domains := NewAppDomains(c, NewAppLookupCache(c, "storefront", "203.0.113.10", time.Hour, zerolog.Nop()))
	ctx := context.Background()

	fqdn, err := domains.RegisterSubdomain(ctx, "myshop", model.NamespaceShop)
	require.NoError(t, err)
	assert.Equal(t, "myshop.shops.example.com", fqdn)
	assert.True(t, f.appDomains["app-1"][fqdn])

	// Attaching twice is accepted.
	_, err = domains.RegisterSubdomain(ctx, "myshop", model.NamespaceShop)
	require.NoError(t, err)

	exists, err := domains.SubdomainExists(ctx, "myshop", model.NamespaceShop)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, domains.UnregisterSubdomain(ctx, "myshop", model.NamespaceShop))
	require.NoError(t, domains.UnregisterSubdomain(ctx, "myshop", model.NamespaceShop))

	exists, err = domains.SubdomainExists(ctx, "myshop", model.NamespaceShop)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFindApp_NotFound(t *testing.T) {
	_, c := newFakeProvider(t)
	_, err := c.FindApp(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAppNotFound)
}
