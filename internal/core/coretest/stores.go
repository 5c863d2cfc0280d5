// Package coretest provides in-memory stores with the same semantics as the
// PostgreSQL stores in core, for use in tests of packages built on them.
package coretest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/edvin/domains/internal/core"
	"github.com/edvin/domains/internal/model"
)

type DomainStore struct {
	mu      sync.Mutex
	domains map[string]*model.CustomDomain
}

func NewDomainStore(domains ...*model.CustomDomain) *DomainStore {
	s := &DomainStore{domains: map[string]*model.CustomDomain{}}
	for _, d := range domains {
		s.domains[d.ID] = d.Clone()
	}
	return s
}

func (s *DomainStore) Create(_ context.Context, d *model.CustomDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.domains {
		if strings.EqualFold(existing.Hostname, d.Hostname) {
			return fmt.Errorf("insert domain %s: %w", d.Hostname, core.ErrHostnameTaken)
		}
	}
	s.domains[d.ID] = d.Clone()
	return nil
}

func (s *DomainStore) Get(_ context.Context, id string) (*model.CustomDomain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[id]
	if !ok {
		return nil, fmt.Errorf("get domain %s: %w", id, core.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *DomainStore) GetByHostname(_ context.Context, hostname string) (*model.CustomDomain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.domains {
		if strings.EqualFold(d.Hostname, hostname) {
			return d.Clone(), nil
		}
	}
	return nil, fmt.Errorf("get domain by hostname %s: %w", hostname, core.ErrNotFound)
}

func (s *DomainStore) ListByTenant(_ context.Context, tenantID string) ([]model.CustomDomain, error) {
	return s.filter(func(d *model.CustomDomain) bool { return d.TenantID == tenantID }), nil
}

func (s *DomainStore) ListByStatus(_ context.Context, statuses ...model.DomainStatus) ([]model.CustomDomain, error) {
	return s.filter(func(d *model.CustomDomain) bool { return slices.Contains(statuses, d.Status) }), nil
}

func (s *DomainStore) filter(keep func(*model.CustomDomain) bool) []model.CustomDomain {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CustomDomain
	for _, d := range s.domains {
		if keep(d) {
			out = append(out, *d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *DomainStore) Update(_ context.Context, d *model.CustomDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.domains[d.ID]
	if !ok || existing.Version != d.Version {
		return fmt.Errorf("update domain %s at version %d: %w", d.ID, d.Version, core.ErrStaleRecord)
	}
	d.Version++
	s.domains[d.ID] = d.Clone()
	return nil
}

func (s *DomainStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[id]; !ok {
		return fmt.Errorf("delete domain %s: %w", id, core.ErrNotFound)
	}
	delete(s.domains, id)
	return nil
}

// Peek returns the stored record without copying, for assertions.
func (s *DomainStore) Peek(id string) *model.CustomDomain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domains[id]
}

type SubdomainStore struct {
	mu   sync.Mutex
	subs map[string]*model.PlatformSubdomain
}

func NewSubdomainStore(subs ...*model.PlatformSubdomain) *SubdomainStore {
	s := &SubdomainStore{subs: map[string]*model.PlatformSubdomain{}}
	for _, sub := range subs {
		c := *sub
		s.subs[sub.ID] = &c
	}
	return s
}

func (s *SubdomainStore) Create(_ context.Context, sub *model.PlatformSubdomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subs {
		if existing.Namespace != sub.Namespace {
			continue
		}
		if existing.OwnerID == sub.OwnerID {
			return fmt.Errorf("insert subdomain for %s/%s: %w", sub.Namespace, sub.OwnerID, core.ErrAlreadyAssigned)
		}
		if existing.Slug == sub.Slug {
			return fmt.Errorf("insert subdomain %s: %w", sub.FQDN, core.ErrSlugTaken)
		}
	}
	c := *sub
	s.subs[sub.ID] = &c
	return nil
}

func (s *SubdomainStore) GetByOwner(_ context.Context, ns model.Namespace, ownerID string) (*model.PlatformSubdomain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.Namespace == ns && sub.OwnerID == ownerID {
			c := *sub
			return &c, nil
		}
	}
	return nil, fmt.Errorf("get subdomain for %s/%s: %w", ns, ownerID, core.ErrNotFound)
}

func (s *SubdomainStore) GetBySlug(_ context.Context, ns model.Namespace, slug string) (*model.PlatformSubdomain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.Namespace == ns && sub.Slug == slug {
			c := *sub
			return &c, nil
		}
	}
	return nil, fmt.Errorf("get subdomain %s in %s: %w", slug, ns, core.ErrNotFound)
}

func (s *SubdomainStore) ListByStatus(_ context.Context, statuses ...model.SubdomainStatus) ([]model.PlatformSubdomain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PlatformSubdomain
	for _, sub := range s.subs {
		if slices.Contains(statuses, sub.Status) {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *SubdomainStore) Update(_ context.Context, sub *model.PlatformSubdomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.subs[sub.ID]
	if !ok || existing.Version != sub.Version {
		return fmt.Errorf("update subdomain %s at version %d: %w", sub.ID, sub.Version, core.ErrStaleRecord)
	}
	sub.Version++
	c := *sub
	s.subs[sub.ID] = &c
	return nil
}

func (s *SubdomainStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return fmt.Errorf("delete subdomain %s: %w", id, core.ErrNotFound)
	}
	delete(s.subs, id)
	return nil
}

// Len returns the number of stored subdomains.
func (s *SubdomainStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
