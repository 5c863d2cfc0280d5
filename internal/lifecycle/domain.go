// Package lifecycle drives custom domains and platform subdomains through
// their state machines. Every transition re-reads the record, checks the
// current state and writes back with a version compare-and-swap, so racing
// requests and background sweeps never both apply.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/domains/internal/core"
	"github.com/edvin/domains/internal/dnsclient"
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/notify"
	"github.com/edvin/domains/internal/platform"
)

// DomainDeps are the collaborators of a DomainManager.
type DomainDeps struct {
	Store    DomainStore
	Resolver Resolver
	Verifier OwnershipVerifier
	Routes   RouteClient
	Certs    CertProber
	Notifier notify.Notifier
}

type DomainManager struct {
	store    DomainStore
	dns      *DNSValidator
	verifier OwnershipVerifier
	routes   RouteClient
	certs    CertProber
	notifier notify.Notifier
	policy   Policy
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	logger   zerolog.Logger
}

// Option customizes a manager.
type Option func(*options)

type options struct {
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSleep replaces the wait used between TLS probes during activation.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = sleep }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, sleep: sleepCtx}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func NewDomainManager(deps DomainDeps, policy Policy, logger zerolog.Logger, opts ...Option) *DomainManager {
	o := buildOptions(opts)
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &DomainManager{
		store:    deps.Store,
		dns:      NewDNSValidator(deps.Resolver, policy.CNAMETarget, policy.PlatformIPs),
		verifier: deps.Verifier,
		routes:   deps.Routes,
		certs:    deps.Certs,
		notifier: notifier,
		policy:   policy,
		now:      o.now,
		sleep:    o.sleep,
		logger:   logger.With().Str("component", "domain-lifecycle").Logger(),
	}
}

// Policy returns the policy the manager enforces.
func (m *DomainManager) Policy() Policy { return m.policy }

// ValidateDNS runs the routing check for host without touching any record.
func (m *DomainManager) ValidateDNS(ctx context.Context, host string) DNSResult {
	res := m.dns.Validate(ctx, host)
	externalChecks.WithLabelValues("dns", resultLabel(res.OK)).Inc()
	return res
}

// save writes d with a version check and records the transition from prev.
func (m *DomainManager) save(ctx context.Context, d *model.CustomDomain, prev model.DomainStatus) error {
	d.UpdatedAt = m.now()
	if err := m.store.Update(ctx, d); err != nil {
		return err
	}
	if prev != d.Status {
		domainTransitions.WithLabelValues(string(prev), string(d.Status)).Inc()
		m.logger.Info().
			Str("domain_id", d.ID).
			Str("hostname", d.Hostname).
			Str("from", string(prev)).
			Str("to", string(d.Status)).
			Msg("domain status changed")
	}
	return nil
}

// CreateDomain registers hostname for a tenant. Hostnames are unique across
// all tenants; a duplicate returns core.ErrHostnameTaken.
func (m *DomainManager) CreateDomain(ctx context.Context, tenantID, hostname string, target model.Target) (*model.CustomDomain, error) {
	host := platform.NormalizeHostname(hostname)
	if err := platform.ValidateHostname(host); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHostname, err)
	}
	if m.policy.BaseDomain != "" && platform.IsUnderBase(host, m.policy.BaseDomain) {
		return nil, fmt.Errorf("%w: %s", ErrReservedHostname, host)
	}
	if host == normalizeName(m.policy.CNAMETarget) {
		return nil, fmt.Errorf("%w: %s", ErrReservedHostname, host)
	}
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if target.IsZero() || target.ID() == "" {
		return nil, errors.New("target is required")
	}

	now := m.now()
	d := &model.CustomDomain{
		ID:                platform.NewID(),
		TenantID:          tenantID,
		Hostname:          host,
		Target:            target,
		VerificationToken: platform.NewVerificationToken(m.policy.PlatformName),
		Status:            model.DomainAwaitingDNS,
		StatusChangedAt:   now,
		Errors:            []model.Issue{},
		Warnings:          []model.Issue{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.store.Create(ctx, d); err != nil {
		return nil, err
	}
	m.logger.Info().Str("domain_id", d.ID).Str("hostname", host).Str("tenant_id", tenantID).
		Str("target", target.String()).Msg("domain created")
	return d, nil
}

func (m *DomainManager) GetDomain(ctx context.Context, id string) (*model.CustomDomain, error) {
	return m.store.Get(ctx, id)
}

func (m *DomainManager) ListDomains(ctx context.Context, tenantID string) ([]model.CustomDomain, error) {
	return m.store.ListByTenant(ctx, tenantID)
}

// RequestDNSCheck validates routing for a domain waiting on DNS. Checks are
// throttled by the stored next-allowed time, which backs off after
// FailureThreshold consecutive failures.
func (m *DomainManager) RequestDNSCheck(ctx context.Context, id string) (*model.CustomDomain, error) {
	d, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if d.NextCheckAt != nil && now.Before(*d.NextCheckAt) {
		return nil, &RateLimitError{RetryAfter: d.NextCheckAt.Sub(now)}
	}
	prev := d.Status
	switch prev {
	case model.DomainPending, model.DomainAwaitingDNS, model.DomainDNSInvalid:
	default:
		return nil, transitionError("dns check", prev)
	}

	// Claim the check before calling the resolver so a concurrent request
	// loses the version race instead of issuing a second lookup.
	d.SetStatus(model.DomainValidatingDNS, now)
	d.DNSCheckAttempts++
	provisional := now.Add(m.policy.nextInterval(d.ConsecutiveFailures))
	d.NextCheckAt = &provisional
	if err := m.save(ctx, d, prev); err != nil {
		return nil, err
	}

	res := m.ValidateDNS(ctx, d.Hostname)
	// The outcome is persisted even if the caller gave up.
	ctx = context.WithoutCancel(ctx)
	now = m.now()
	ApplyDNSResult(d, res, now)

	if res.OK {
		d.ConsecutiveFailures = 0
		d.Warnings = model.RemoveIssues(d.Warnings, model.IssueDNSCheckBackoff)
		next := now.Add(m.policy.CheckInterval)
		d.NextCheckAt = &next
		d.SetStatus(model.DomainAwaitingVerification, now)
	} else {
		d.ConsecutiveFailures++
		m.scheduleRetry(d, now)
		d.SetStatus(model.DomainDNSInvalid, now)
	}
	if err := m.save(ctx, d, model.DomainValidatingDNS); err != nil {
		return nil, err
	}
	return d, nil
}

// scheduleRetry sets the next allowed check after a failure and attaches the
// backoff warning once the failure threshold is reached.
func (m *DomainManager) scheduleRetry(d *model.CustomDomain, now time.Time) {
	interval := m.policy.nextInterval(d.ConsecutiveFailures)
	next := now.Add(interval)
	d.NextCheckAt = &next
	if d.ConsecutiveFailures >= m.policy.FailureThreshold {
		d.AddWarning(model.IssueDNSCheckBackoff, model.SeverityWarning,
			fmt.Sprintf("%d consecutive failed checks; next check allowed after %s",
				d.ConsecutiveFailures, next.UTC().Format(time.RFC3339)), now)
	}
}

// RequestOwnershipVerification checks the TXT or well-known file proof for a
// domain in AWAITING_VERIFICATION and activates it on success. Retries after
// a failed proof follow the same throttle as DNS checks.
func (m *DomainManager) RequestOwnershipVerification(ctx context.Context, id string) (*model.CustomDomain, error) {
	d, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := d.Status
	if prev != model.DomainAwaitingVerification {
		return nil, transitionError("ownership verification", prev)
	}
	now := m.now()
	if d.ConsecutiveFailures > 0 && d.NextCheckAt != nil && now.Before(*d.NextCheckAt) {
		return nil, &RateLimitError{RetryAfter: d.NextCheckAt.Sub(now)}
	}

	d.SetStatus(model.DomainValidatingOwnership, now)
	if err := m.save(ctx, d, prev); err != nil {
		return nil, err
	}

	res := m.verifier.CheckOwnership(ctx, d.Hostname, d.VerificationToken)
	externalChecks.WithLabelValues("ownership", resultLabel(res.Valid)).Inc()
	ctx = context.WithoutCancel(ctx)
	now = m.now()
	d.Errors = model.RemoveIssues(d.Errors, OwnershipIssueCodes...)

	if !res.Valid {
		for _, f := range res.Failures {
			d.AddError(f.Code, f.Message, now)
		}
		d.ConsecutiveFailures++
		m.scheduleRetry(d, now)
		d.SetStatus(model.DomainAwaitingVerification, now)
		if err := m.save(ctx, d, model.DomainValidatingOwnership); err != nil {
			return nil, err
		}
		return d, nil
	}

	method := res.Method
	d.Verified = true
	d.VerifiedAt = &now
	d.VerificationMethod = &method
	d.ConsecutiveFailures = 0
	d.NextCheckAt = nil
	d.Warnings = model.RemoveIssues(d.Warnings, model.IssueDNSCheckBackoff)
	d.SetStatus(model.DomainIssuingSSL, now)
	if err := m.save(ctx, d, model.DomainValidatingOwnership); err != nil {
		return nil, err
	}
	return m.activate(ctx, d)
}

// ActivateDomain adds the edge route for a verified domain and waits a
// bounded time for its certificate. Callable from ISSUING_SSL, and from
// SSL_ERROR to retry a failed route.
func (m *DomainManager) ActivateDomain(ctx context.Context, id string) (*model.CustomDomain, error) {
	d, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DomainIssuingSSL && d.Status != model.DomainSSLError {
		return nil, transitionError("activation", d.Status)
	}
	if !d.Verified {
		return nil, ErrNotVerified
	}
	return m.activate(ctx, d)
}

// activate moves d to ACTIVE once its route exists, whether or not the
// certificate showed up within the wait; issuance finishes asynchronously
// at the edge and the reconciler picks it up. A failed route add moves the
// domain to SSL_ERROR instead.
func (m *DomainManager) activate(ctx context.Context, d *model.CustomDomain) (*model.CustomDomain, error) {
	prev := d.Status

	if err := m.routes.AddRoute(ctx, d.Hostname, d.Target); err != nil {
		m.logger.Warn().Err(err).Str("domain_id", d.ID).Str("hostname", d.Hostname).Msg("route add failed")
		now := m.now()
		d.AddError(model.IssueRouteAddFailed, err.Error(), now)
		d.SetStatus(model.DomainSSLError, now)
		if err := m.save(context.WithoutCancel(ctx), d, prev); err != nil {
			return nil, err
		}
		return d, nil
	}

	cert := m.waitForCertificate(ctx, d.Hostname)
	ctx = context.WithoutCancel(ctx)
	now := m.now()
	d.Errors = model.RemoveIssues(d.Errors, model.IssueRouteAddFailed)
	if cert != nil {
		RecordCertificate(d, cert, now)
		d.Warnings = model.RemoveIssues(d.Warnings, model.IssueSSLPending)
	} else {
		d.LastSSLCheck = &model.SSLCheck{CheckedAt: now, Error: "certificate not issued yet"}
		d.AddWarning(model.IssueSSLPending, model.SeverityInfo,
			"the certificate is still being issued and will be picked up automatically", now)
	}
	d.SetStatus(model.DomainActive, now)

	if err := m.save(ctx, d, prev); err != nil {
		if errors.Is(err, core.ErrStaleRecord) {
			m.cleanupIfDeleted(ctx, d)
		}
		return nil, err
	}
	return d, nil
}

// cleanupIfDeleted removes the route added for d when the domain was deleted
// while activation was in flight.
func (m *DomainManager) cleanupIfDeleted(ctx context.Context, d *model.CustomDomain) {
	if _, err := m.store.Get(ctx, d.ID); !errors.Is(err, core.ErrNotFound) {
		return
	}
	if err := m.routes.RemoveRoute(ctx, d.Hostname); err != nil {
		m.logger.Error().Err(err).Str("hostname", d.Hostname).Msg("remove route of deleted domain")
	}
}

func (m *DomainManager) waitForCertificate(ctx context.Context, host string) *dnsclient.CertInfo {
	deadline := m.now().Add(m.policy.SSLWaitTimeout)
	for {
		if cert := m.certs.ProbeTLSCertificate(ctx, host); cert != nil && CoversHost(cert, host) {
			externalChecks.WithLabelValues("tls", "success").Inc()
			return cert
		}
		if m.now().Add(m.policy.SSLWaitInterval).After(deadline) {
			externalChecks.WithLabelValues("tls", "failure").Inc()
			return nil
		}
		if err := m.sleep(ctx, m.policy.SSLWaitInterval); err != nil {
			return nil
		}
	}
}

// CoversHost reports whether cert names host, directly or by a wildcard one
// level up. An edge serving its default certificate does not count.
func CoversHost(cert *dnsclient.CertInfo, host string) bool {
	for _, name := range cert.DNSNames {
		name = strings.ToLower(name)
		if name == host {
			return true
		}
		if suffix, ok := strings.CutPrefix(name, "*."); ok {
			if i := strings.IndexByte(host, '.'); i > 0 && host[i+1:] == suffix {
				return true
			}
		}
	}
	return false
}

// RecordCertificate stores what a TLS probe saw.
func RecordCertificate(d *model.CustomDomain, cert *dnsclient.CertInfo, now time.Time) {
	notBefore, notAfter := cert.NotBefore, cert.NotAfter
	issuer := cert.Issuer
	d.SSLIssuedAt = &notBefore
	d.SSLExpiresAt = &notAfter
	d.SSLIssuer = &issuer
	d.LastSSLCheck = &model.SSLCheck{
		CheckedAt: now,
		Success:   true,
		Issuer:    cert.Issuer,
		Subject:   cert.Subject,
		NotBefore: &notBefore,
		NotAfter:  &notAfter,
	}
}

// Suspend takes a serving domain offline. The edge route is removed on a
// best-effort basis; the reconciler never restores it on its own.
func (m *DomainManager) Suspend(ctx context.Context, id, reason string) (*model.CustomDomain, error) {
	d, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.SuspendDomain(ctx, d, reason); err != nil {
		return nil, err
	}
	return d, nil
}

// SuspendDomain suspends an already loaded record. It is used by the
// reconciler, which holds the version it read at the start of the sweep.
func (m *DomainManager) SuspendDomain(ctx context.Context, d *model.CustomDomain, reason string) error {
	prev := d.Status
	if !prev.CanTransitionTo(model.DomainSuspended) {
		return transitionError("suspend", prev)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "suspended by operator"
	}

	if err := m.routes.RemoveRoute(ctx, d.Hostname); err != nil {
		m.logger.Warn().Err(err).Str("hostname", d.Hostname).Msg("remove route during suspension failed")
	}

	now := m.now()
	d.SetStatus(model.DomainSuspended, now)
	d.SuspendedReason = &reason
	d.SuspendedAt = &now
	d.AddError(model.IssueSuspended, reason, now)
	if err := m.save(ctx, d, prev); err != nil {
		return err
	}

	ev := notify.Event{
		Kind:     notify.EventSuspended,
		Severity: model.SeverityCritical,
		DomainID: d.ID,
		TenantID: d.TenantID,
		Hostname: d.Hostname,
		Message:  fmt.Sprintf("%s was suspended: %s", d.Hostname, reason),
		At:       now,
	}
	if err := m.notifier.Notify(ctx, ev); err != nil {
		m.logger.Warn().Err(err).Str("hostname", d.Hostname).Msg("suspension notification failed")
	}
	return nil
}

// Reactivate resets a suspended domain to AWAITING_DNS. Ownership must be
// proven again; the verification token is kept so existing TXT records
// still work.
func (m *DomainManager) Reactivate(ctx context.Context, id string) (*model.CustomDomain, error) {
	d, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := d.Status
	if prev != model.DomainSuspended {
		return nil, transitionError("reactivate", prev)
	}

	now := m.now()
	d.SetStatus(model.DomainAwaitingDNS, now)
	d.Verified = false
	d.VerifiedAt = nil
	d.VerificationMethod = nil
	d.ConsecutiveFailures = 0
	d.DNSCheckAttempts = 0
	d.NextCheckAt = nil
	d.Errors = []model.Issue{}
	d.Warnings = []model.Issue{}
	d.SuspendedReason = nil
	d.SuspendedAt = nil
	d.SSLNotifiedBand = ""
	if err := m.save(ctx, d, prev); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDomain removes the edge route and then the record. If the route
// cannot be removed the record is kept so the delete can be retried.
func (m *DomainManager) DeleteDomain(ctx context.Context, id string) error {
	d, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.routes.RemoveRoute(ctx, d.Hostname); err != nil {
		return fmt.Errorf("remove route for %s: %w", d.Hostname, err)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info().Str("domain_id", id).Str("hostname", d.Hostname).Msg("domain deleted")
	return nil
}

// IsDomainAllowedForTLS tells the TLS terminator whether it may request a
// certificate for host. Unknown and unverified hosts are always denied.
func (m *DomainManager) IsDomainAllowedForTLS(ctx context.Context, host string) (bool, error) {
	d, err := m.store.GetByHostname(ctx, platform.NormalizeHostname(host))
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return d.Verified && d.Status.AllowsTLS(), nil
}
