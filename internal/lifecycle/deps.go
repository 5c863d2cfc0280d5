package lifecycle

import (
	"context"

	"github.com/edvin/domains/internal/dnsclient"
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/ownership"
)

// DomainStore persists custom domains. Update must be a compare-and-swap on
// Version that returns core.ErrStaleRecord when it loses a race.
type DomainStore interface {
	Create(ctx context.Context, d *model.CustomDomain) error
	Get(ctx context.Context, id string) (*model.CustomDomain, error)
	GetByHostname(ctx context.Context, hostname string) (*model.CustomDomain, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.CustomDomain, error)
	Update(ctx context.Context, d *model.CustomDomain) error
	Delete(ctx context.Context, id string) error
}

// SubdomainStore persists platform subdomains with the same Update contract.
type SubdomainStore interface {
	Create(ctx context.Context, sub *model.PlatformSubdomain) error
	GetByOwner(ctx context.Context, ns model.Namespace, ownerID string) (*model.PlatformSubdomain, error)
	GetBySlug(ctx context.Context, ns model.Namespace, slug string) (*model.PlatformSubdomain, error)
	Update(ctx context.Context, sub *model.PlatformSubdomain) error
	Delete(ctx context.Context, id string) error
}

// Resolver answers the DNS questions routing validation asks.
type Resolver interface {
	ResolveCNAME(ctx context.Context, host string) (dnsclient.Answer, error)
	ResolveA(ctx context.Context, host string) (dnsclient.Answer, error)
}

// OwnershipVerifier checks TXT and well-known file proofs.
type OwnershipVerifier interface {
	CheckOwnership(ctx context.Context, host, expectedToken string) ownership.Result
}

// RouteClient binds hostnames to backends on the edge proxy.
type RouteClient interface {
	AddRoute(ctx context.Context, host string, target model.Target) error
	RemoveRoute(ctx context.Context, host string) error
}

// CertProber reads the certificate served for a host, or nil.
type CertProber interface {
	ProbeTLSCertificate(ctx context.Context, host string) *dnsclient.CertInfo
}

// HTTPSProber checks that a host answers HTTPS with a valid certificate.
type HTTPSProber interface {
	ProbeHTTPS(ctx context.Context, host string) error
}

// Provisioner creates and removes platform subdomains at the DNS provider.
type Provisioner interface {
	RegisterSubdomain(ctx context.Context, slug string, ns model.Namespace) (string, error)
	UnregisterSubdomain(ctx context.Context, slug string, ns model.Namespace) error
	SubdomainExists(ctx context.Context, slug string, ns model.Namespace) (bool, error)
}
