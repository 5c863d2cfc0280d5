package model

// DomainStatus is the lifecycle state of a tenant-owned custom domain.
type DomainStatus string

// Custom domain lifecycle states.
const (
	DomainPending              DomainStatus = "pending"
	DomainAwaitingDNS          DomainStatus = "awaiting_dns"
	DomainValidatingDNS        DomainStatus = "validating_dns"
	DomainDNSInvalid           DomainStatus = "dns_invalid"
	DomainAwaitingVerification DomainStatus = "awaiting_verification"
	DomainValidatingOwnership  DomainStatus = "validating_ownership"
	DomainIssuingSSL           DomainStatus = "issuing_ssl"
	DomainActive               DomainStatus = "active"
	DomainSSLExpiring          DomainStatus = "ssl_expiring"
	DomainSSLError             DomainStatus = "ssl_error"
	DomainSuspended            DomainStatus = "suspended"
)

// domainTransitions lists the legal edges of the custom domain state machine.
// Deletion is allowed from every state and is not modelled as an edge.
var domainTransitions = map[DomainStatus][]DomainStatus{
	DomainPending:              {DomainAwaitingDNS, DomainValidatingDNS},
	DomainAwaitingDNS:          {DomainValidatingDNS},
	DomainValidatingDNS:        {DomainAwaitingVerification, DomainDNSInvalid, DomainAwaitingDNS},
	DomainDNSInvalid:           {DomainAwaitingDNS, DomainValidatingDNS},
	DomainAwaitingVerification: {DomainValidatingOwnership},
	DomainValidatingOwnership:  {DomainIssuingSSL, DomainAwaitingVerification},
	DomainIssuingSSL:           {DomainActive, DomainSSLError},
	DomainActive:               {DomainSSLExpiring, DomainSSLError, DomainSuspended, DomainActive},
	DomainSSLExpiring:          {DomainActive, DomainSSLError, DomainSuspended, DomainSSLExpiring},
	DomainSSLError:             {DomainActive, DomainSSLExpiring, DomainSuspended, DomainSSLError},
	DomainSuspended:            {DomainAwaitingDNS},
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s DomainStatus) CanTransitionTo(next DomainStatus) bool {
	for _, allowed := range domainTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known domain status.
func (s DomainStatus) IsValid() bool {
	_, ok := domainTransitions[s]
	return ok
}

// AllowsTLS reports whether a certificate may be issued for a verified
// domain in this state.
func (s DomainStatus) AllowsTLS() bool {
	switch s {
	case DomainIssuingSSL, DomainActive, DomainSSLExpiring, DomainSSLError:
		return true
	}
	return false
}

// IsServing reports whether the domain is expected to be routed at the edge.
func (s DomainStatus) IsServing() bool {
	return s == DomainActive || s == DomainSSLExpiring
}

// SubdomainStatus is the composite provisioning state of a platform subdomain.
type SubdomainStatus string

// Platform subdomain states.
const (
	SubdomainPending     SubdomainStatus = "pending"
	SubdomainDNSCreating SubdomainStatus = "dns_creating"
	SubdomainActivating  SubdomainStatus = "activating"
	SubdomainActive      SubdomainStatus = "active"
	SubdomainError       SubdomainStatus = "error"
	SubdomainRemoving    SubdomainStatus = "removing"
)

// IsPending reports whether the subdomain is still waiting on external
// provisioning and should be polled by the reconciler.
func (s SubdomainStatus) IsPending() bool {
	switch s {
	case SubdomainPending, SubdomainDNSCreating, SubdomainActivating:
		return true
	}
	return false
}
