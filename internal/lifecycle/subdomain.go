package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/domains/internal/core"
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/platform"
)

// SubdomainDeps are the collaborators of a SubdomainManager.
type SubdomainDeps struct {
	Store       SubdomainStore
	Provisioner Provisioner
	Prober      HTTPSProber
}

// SubdomainManager assigns, renames and removes platform subdomains. There is
// no ownership step: provisioning is the provider saga, and activation is
// confirmed later by Reconcile once the host answers HTTPS.
type SubdomainManager struct {
	store       SubdomainStore
	provisioner Provisioner
	prober      HTTPSProber
	policy      Policy
	now         func() time.Time
	logger      zerolog.Logger
}

func NewSubdomainManager(deps SubdomainDeps, policy Policy, logger zerolog.Logger, opts ...Option) *SubdomainManager {
	o := buildOptions(opts)
	return &SubdomainManager{
		store:       deps.Store,
		provisioner: deps.Provisioner,
		prober:      deps.Prober,
		policy:      policy,
		now:         o.now,
		logger:      logger.With().Str("component", "subdomain-lifecycle").Logger(),
	}
}

func (m *SubdomainManager) save(ctx context.Context, sub *model.PlatformSubdomain, prev model.SubdomainStatus, now time.Time) error {
	sub.UpdatedAt = now
	if err := m.store.Update(ctx, sub); err != nil {
		return err
	}
	if prev != sub.Status {
		subdomainTransitions.WithLabelValues(string(prev), string(sub.Status)).Inc()
		m.logger.Info().Str("fqdn", sub.FQDN).Str("from", string(prev)).Str("to", string(sub.Status)).
			Msg("subdomain status changed")
	}
	return nil
}

func (m *SubdomainManager) Get(ctx context.Context, ns model.Namespace, ownerID string) (*model.PlatformSubdomain, error) {
	return m.store.GetByOwner(ctx, ns, ownerID)
}

// Assign gives the owner slug in ns: a first assignment registers it, a
// different slug renames, and the same slug retries a failed provisioning.
func (m *SubdomainManager) Assign(ctx context.Context, ns model.Namespace, ownerID, slug string) (*model.PlatformSubdomain, error) {
	if err := platform.ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlug, err)
	}
	current, err := m.store.GetByOwner(ctx, ns, ownerID)
	if errors.Is(err, core.ErrNotFound) {
		return m.Register(ctx, ns, ownerID, slug)
	}
	if err != nil {
		return nil, err
	}
	if current.Slug != slug {
		return m.Rename(ctx, ns, ownerID, slug)
	}
	if current.Status == model.SubdomainError {
		return m.provision(ctx, current)
	}
	return current, nil
}

// Register stores a new subdomain and runs the provider saga. It returns
// with the subdomain in ACTIVATING; Reconcile promotes it to ACTIVE.
func (m *SubdomainManager) Register(ctx context.Context, ns model.Namespace, ownerID, slug string) (*model.PlatformSubdomain, error) {
	if err := platform.ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlug, err)
	}
	now := m.now()
	sub := &model.PlatformSubdomain{
		ID:        platform.NewID(),
		OwnerID:   ownerID,
		Namespace: ns,
		Slug:      slug,
		FQDN:      platform.SubdomainFQDN(slug, ns.Label(), m.policy.BaseDomain),
		Status:    model.SubdomainPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, sub); err != nil {
		return nil, err
	}
	return m.provision(ctx, sub)
}

func (m *SubdomainManager) provision(ctx context.Context, sub *model.PlatformSubdomain) (*model.PlatformSubdomain, error) {
	prev := sub.Status
	sub.Status = model.SubdomainDNSCreating
	sub.Error = nil
	if err := m.save(ctx, sub, prev, m.now()); err != nil {
		return nil, err
	}

	fqdn, err := m.provisioner.RegisterSubdomain(ctx, sub.Slug, sub.Namespace)
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		msg := err.Error()
		sub.Status = model.SubdomainError
		sub.Error = &msg
		if saveErr := m.save(ctx, sub, model.SubdomainDNSCreating, m.now()); saveErr != nil {
			return nil, saveErr
		}
		return sub, fmt.Errorf("provision %s: %w", sub.FQDN, err)
	}

	url := "https://" + fqdn
	sub.FQDN = fqdn
	sub.URL = &url
	sub.Status = model.SubdomainActivating
	if err := m.save(ctx, sub, model.SubdomainDNSCreating, m.now()); err != nil {
		return nil, err
	}
	return sub, nil
}

// Remove deprovisions the owner's subdomain and deletes the record. If the
// provider call fails the record stays in ERROR so removal can be retried.
func (m *SubdomainManager) Remove(ctx context.Context, ns model.Namespace, ownerID string) error {
	sub, err := m.store.GetByOwner(ctx, ns, ownerID)
	if err != nil {
		return err
	}
	prev := sub.Status
	sub.Status = model.SubdomainRemoving
	if err := m.save(ctx, sub, prev, m.now()); err != nil {
		return err
	}

	if err := m.provisioner.UnregisterSubdomain(ctx, sub.Slug, sub.Namespace); err != nil {
		msg := err.Error()
		sub.Status = model.SubdomainError
		sub.Error = &msg
		if saveErr := m.save(context.WithoutCancel(ctx), sub, model.SubdomainRemoving, m.now()); saveErr != nil {
			m.logger.Error().Err(saveErr).Str("fqdn", sub.FQDN).Msg("persist removal failure")
		}
		return fmt.Errorf("deprovision %s: %w", sub.FQDN, err)
	}
	if err := m.store.Delete(ctx, sub.ID); err != nil {
		return err
	}
	m.logger.Info().Str("fqdn", sub.FQDN).Msg("subdomain removed")
	return nil
}

// Rename removes the current subdomain and then registers newSlug; the
// provider has no rename primitive.
func (m *SubdomainManager) Rename(ctx context.Context, ns model.Namespace, ownerID, newSlug string) (*model.PlatformSubdomain, error) {
	if err := platform.ValidateSlug(newSlug); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlug, err)
	}
	current, err := m.store.GetByOwner(ctx, ns, ownerID)
	if err != nil {
		return nil, err
	}
	if current.Slug == newSlug {
		return current, nil
	}

	// A taken slug must not cost the owner their current subdomain.
	other, err := m.store.GetBySlug(ctx, ns, newSlug)
	switch {
	case err == nil && other.OwnerID != ownerID:
		return nil, fmt.Errorf("rename to %s: %w", newSlug, core.ErrSlugTaken)
	case err != nil && !errors.Is(err, core.ErrNotFound):
		return nil, err
	}

	if err := m.Remove(ctx, ns, ownerID); err != nil {
		return nil, err
	}
	return m.Register(ctx, ns, ownerID, newSlug)
}

// Reconcile advances a subdomain in a pending state: it becomes ACTIVE once
// the provider object exists and the host answers HTTPS with a valid
// certificate, and ERROR if the object vanished. It reports whether the
// record changed.
func (m *SubdomainManager) Reconcile(ctx context.Context, sub *model.PlatformSubdomain, now time.Time) (bool, error) {
	if !sub.Status.IsPending() {
		return false, nil
	}
	prev := sub.Status
	stale := now.Sub(sub.UpdatedAt) > m.policy.StaleAfter

	exists, err := m.provisioner.SubdomainExists(ctx, sub.Slug, sub.Namespace)
	if err != nil {
		return false, fmt.Errorf("check %s at provider: %w", sub.FQDN, err)
	}
	if !exists {
		if prev != model.SubdomainActivating && !stale {
			// The saga may still be running.
			return false, nil
		}
		msg := "provider object for " + sub.FQDN + " no longer exists"
		sub.Status = model.SubdomainError
		sub.Error = &msg
		return true, m.save(ctx, sub, prev, now)
	}

	if prev != model.SubdomainActivating && !stale {
		return false, nil
	}
	if err := m.prober.ProbeHTTPS(ctx, sub.FQDN); err != nil {
		if prev == model.SubdomainActivating {
			return false, nil
		}
		url := "https://" + sub.FQDN
		sub.URL = &url
		sub.Status = model.SubdomainActivating
		return true, m.save(ctx, sub, prev, now)
	}

	url := "https://" + sub.FQDN
	sub.URL = &url
	sub.Status = model.SubdomainActive
	sub.Error = nil
	sub.ActivatedAt = &now
	return true, m.save(ctx, sub, prev, now)
}
