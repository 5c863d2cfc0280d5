package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/domains/internal/lifecycle"
	"github.com/edvin/domains/internal/model"
)

type mockDomainService struct {
	mock.Mock
}

func (m *mockDomainService) Policy() lifecycle.Policy {
	p := lifecycle.DefaultPolicy()
	p.PlatformName = "acme"
	p.CNAMETarget = "proxy.platform.io"
	p.PlatformIPs = []string{"203.0.113.10"}
	return p
}

func domainResult(args mock.Arguments) (*model.CustomDomain, error) {
	if d := args.Get(0); d != nil {
		return d.(*model.CustomDomain), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDomainService) CreateDomain(ctx context.Context, tenantID, hostname string, target model.Target) (*model.CustomDomain, error) {
	return domainResult(m.Called(ctx, tenantID, hostname, target))
}

func (m *mockDomainService) GetDomain(ctx context.Context, id string) (*model.CustomDomain, error) {
	return domainResult(m.Called(ctx, id))
}

func (m *mockDomainService) ListDomains(ctx context.Context, tenantID string) ([]model.CustomDomain, error) {
	args := m.Called(ctx, tenantID)
	if l := args.Get(0); l != nil {
		return l.([]model.CustomDomain), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDomainService) DeleteDomain(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockDomainService) RequestDNSCheck(ctx context.Context, id string) (*model.CustomDomain, error) {
	return domainResult(m.Called(ctx, id))
}

func (m *mockDomainService) RequestOwnershipVerification(ctx context.Context, id string) (*model.CustomDomain, error) {
	return domainResult(m.Called(ctx, id))
}

func (m *mockDomainService) Reactivate(ctx context.Context, id string) (*model.CustomDomain, error) {
	return domainResult(m.Called(ctx, id))
}

func (m *mockDomainService) Suspend(ctx context.Context, id, reason string) (*model.CustomDomain, error) {
	return domainResult(m.Called(ctx, id, reason))
}

func (m *mockDomainService) IsDomainAllowedForTLS(ctx context.Context, host string) (bool, error) {
	args := m.Called(ctx, host)
	return args.Bool(0), args.Error(1)
}

type mockSubdomainService struct {
	mock.Mock
}

func subResult(args mock.Arguments) (*model.PlatformSubdomain, error) {
	if s := args.Get(0); s != nil {
		return s.(*model.PlatformSubdomain), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSubdomainService) Assign(ctx context.Context, ns model.Namespace, ownerID, slug string) (*model.PlatformSubdomain, error) {
	return subResult(m.Called(ctx, ns, ownerID, slug))
}

func (m *mockSubdomainService) Get(ctx context.Context, ns model.Namespace, ownerID string) (*model.PlatformSubdomain, error) {
	return subResult(m.Called(ctx, ns, ownerID))
}

func (m *mockSubdomainService) Remove(ctx context.Context, ns model.Namespace, ownerID string) error {
	return m.Called(ctx, ns, ownerID).Error(0)
}
