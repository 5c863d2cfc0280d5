package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/domains/internal/dnsclient"
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/notify"
	"github.com/edvin/domains/internal/ownership"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveCNAME(ctx context.Context, host string) (dnsclient.Answer, error) {
	args := m.Called(ctx, host)
	return args.Get(0).(dnsclient.Answer), args.Error(1)
}

func (m *mockResolver) ResolveA(ctx context.Context, host string) (dnsclient.Answer, error) {
	args := m.Called(ctx, host)
	return args.Get(0).(dnsclient.Answer), args.Error(1)
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) CheckOwnership(ctx context.Context, host, token string) ownership.Result {
	args := m.Called(ctx, host, token)
	return args.Get(0).(ownership.Result)
}

type mockRoutes struct {
	mock.Mock
}

func (m *mockRoutes) AddRoute(ctx context.Context, host string, target model.Target) error {
	return m.Called(ctx, host, target).Error(0)
}

func (m *mockRoutes) RemoveRoute(ctx context.Context, host string) error {
	return m.Called(ctx, host).Error(0)
}

type mockCerts struct {
	mock.Mock
}

func (m *mockCerts) ProbeTLSCertificate(ctx context.Context, host string) *dnsclient.CertInfo {
	args := m.Called(ctx, host)
	if c := args.Get(0); c != nil {
		return c.(*dnsclient.CertInfo)
	}
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, ev notify.Event) error {
	return m.Called(ctx, ev).Error(0)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) RegisterSubdomain(ctx context.Context, slug string, ns model.Namespace) (string, error) {
	args := m.Called(ctx, slug, ns)
	return args.String(0), args.Error(1)
}

func (m *mockProvisioner) UnregisterSubdomain(ctx context.Context, slug string, ns model.Namespace) error {
	return m.Called(ctx, slug, ns).Error(0)
}

func (m *mockProvisioner) SubdomainExists(ctx context.Context, slug string, ns model.Namespace) (bool, error) {
	args := m.Called(ctx, slug, ns)
	return args.Bool(0), args.Error(1)
}

type mockHTTPSProber struct {
	mock.Mock
}

func (m *mockHTTPSProber) ProbeHTTPS(ctx context.Context, host string) error {
	return m.Called(ctx, host).Error(0)
}

// fakeClock is a manual clock whose Sleep advances time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.Advance(d)
	return nil
}
