package reconciler

import (
	"context"

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
	return m.Called(ctx, host, token).Get(0).(ownership.Result)
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
	if c := m.Called(ctx, host).Get(0); c != nil {
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

type mockProber struct {
	mock.Mock
}

func (m *mockProber) ProbeHTTPS(ctx context.Context, host string) error {
	return m.Called(ctx, host).Error(0)
}
