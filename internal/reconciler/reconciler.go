// Package reconciler runs the periodic health sweep over custom domains and
// platform subdomains. A sweep is a single ReconcileOnce call at a given
// time; RunLoop only schedules it.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/domains/internal/core"
	"github.com/edvin/domains/internal/lifecycle"
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/notify"
)

var (
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "domains_reconcile_duration_seconds",
		Help:    "Duration of each reconciliation sweep",
		Buckets: prometheus.DefBuckets,
	})
	sweepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domains_reconcile_total",
		Help: "Total reconciliation sweeps",
	}, []string{"result"})
	sweepActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domains_reconcile_actions_total",
		Help: "Per-record outcomes of reconciliation sweeps",
	}, []string{"action"})
)

// Sweep outcomes per record.
const (
	ActionChecked   = "checked"
	ActionSuspended = "suspended"
	ActionRecovered = "recovered"
	ActionActivated = "activated"
	ActionNotified  = "notified"
	ActionSubdomain = "subdomain_changed"
	ActionConflict  = "conflict"
	ActionFailed    = "failed"
	ActionUnchanged = "unchanged"
)

// DomainStore is the slice of domain storage the sweep needs.
type DomainStore interface {
	ListByStatus(ctx context.Context, statuses ...model.DomainStatus) ([]model.CustomDomain, error)
	Update(ctx context.Context, d *model.CustomDomain) error
}

// SubdomainStore lists subdomains waiting on provisioning.
type SubdomainStore interface {
	ListByStatus(ctx context.Context, statuses ...model.SubdomainStatus) ([]model.PlatformSubdomain, error)
}

// Domains is the domain lifecycle the sweep drives.
type Domains interface {
	ValidateDNS(ctx context.Context, host string) lifecycle.DNSResult
	SuspendDomain(ctx context.Context, d *model.CustomDomain, reason string) error
	ActivateDomain(ctx context.Context, id string) (*model.CustomDomain, error)
}

// Subdomains promotes pending subdomains.
type Subdomains interface {
	Reconcile(ctx context.Context, sub *model.PlatformSubdomain, now time.Time) (bool, error)
}

// Deps are the collaborators of a Reconciler.
type Deps struct {
	DomainStore    DomainStore
	SubdomainStore SubdomainStore
	Domains        Domains
	Subdomains     Subdomains
	Certs          lifecycle.CertProber
	Notifier       notify.Notifier
}

// Summary counts sweep outcomes by action.
type Summary struct {
	mu      sync.Mutex
	Actions map[string]int
}

func (s *Summary) add(action string) {
	s.mu.Lock()
	s.Actions[action]++
	s.mu.Unlock()
	sweepActions.WithLabelValues(action).Inc()
}

// Count returns how many records ended with action.
func (s *Summary) Count(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Actions[action]
}

// Reconciler sweeps domains and subdomains.
type Reconciler struct {
	domainStore DomainStore
	subStore    SubdomainStore
	domains     Domains
	subdomains  Subdomains
	certs       lifecycle.CertProber
	notifier    notify.Notifier
	policy      lifecycle.Policy

	interval    time.Duration
	concurrency int
	logger      zerolog.Logger

	lastSweep atomic.Int64
}

func New(deps Deps, policy lifecycle.Policy, interval time.Duration, concurrency int, logger zerolog.Logger) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Reconciler{
		domainStore: deps.DomainStore,
		subStore:    deps.SubdomainStore,
		domains:     deps.Domains,
		subdomains:  deps.Subdomains,
		certs:       deps.Certs,
		notifier:    notifier,
		policy:      policy,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "reconciler").Logger(),
	}
}

// ReconcileOnce runs one sweep as of now. Per-record failures are logged and
// counted; only failing to list records returns an error.
func (r *Reconciler) ReconcileOnce(ctx context.Context, now time.Time) (*Summary, error) {
	start := time.Now()
	sum := &Summary{Actions: map[string]int{}}

	healthy, err := r.domainStore.ListByStatus(ctx, model.DomainActive, model.DomainSSLExpiring, model.DomainSSLError)
	if err != nil {
		sweepTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("list serving domains: %w", err)
	}
	transient, err := r.domainStore.ListByStatus(ctx,
		model.DomainValidatingDNS, model.DomainValidatingOwnership, model.DomainIssuingSSL)
	if err != nil {
		sweepTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("list transient domains: %w", err)
	}
	pending, err := r.subStore.ListByStatus(ctx,
		model.SubdomainPending, model.SubdomainDNSCreating, model.SubdomainActivating)
	if err != nil {
		sweepTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("list pending subdomains: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i := range healthy {
		d := &healthy[i]
		g.Go(func() error {
			if d.Status == model.DomainSSLError && model.HasIssue(d.Errors, model.IssueRouteAddFailed) {
				sum.add(r.retryActivation(ctx, d))
				return nil
			}
			r.checkDomain(ctx, d, now, sum)
			return nil
		})
	}
	for i := range transient {
		d := &transient[i]
		g.Go(func() error {
			sum.add(r.recoverTransient(ctx, d, now))
			return nil
		})
	}
	for i := range pending {
		sub := &pending[i]
		g.Go(func() error {
			sum.add(r.reconcileSubdomain(ctx, sub, now))
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(start).Seconds()
	sweepDuration.Observe(duration)
	sweepTotal.WithLabelValues("success").Inc()
	r.logger.Info().
		Int("domains", len(healthy)+len(transient)).
		Int("subdomains", len(pending)).
		Interface("actions", sum.Actions).
		Float64("duration_s", duration).
		Msg("reconciliation completed")
	return sum, nil
}

// checkDomain revalidates DNS for a serving domain, suspends it after
// repeated failures and otherwise reconciles its certificate band.
func (r *Reconciler) checkDomain(ctx context.Context, d *model.CustomDomain, now time.Time, sum *Summary) {
	log := r.logger.With().Str("domain_id", d.ID).Str("hostname", d.Hostname).Logger()

	res := r.domains.ValidateDNS(ctx, d.Hostname)
	lifecycle.ApplyDNSResult(d, res, now)
	if res.OK {
		d.ConsecutiveFailures = 0
		d.Warnings = model.RemoveIssues(d.Warnings, model.IssueHealthCheckFailing)
	} else {
		d.ConsecutiveFailures++
		d.AddWarning(model.IssueHealthCheckFailing, model.SeverityWarning,
			fmt.Sprintf("%d consecutive failed health checks: %s", d.ConsecutiveFailures, res.Error), now)
		if d.ConsecutiveFailures >= r.policy.FailureThreshold {
			reason := fmt.Sprintf("DNS stopped pointing at the platform (%d consecutive failed checks)", d.ConsecutiveFailures)
			if err := r.domains.SuspendDomain(ctx, d, reason); err != nil {
				sum.add(outcome(err))
				log.Warn().Err(err).Msg("suspend failing domain")
				return
			}
			log.Warn().Int("failures", d.ConsecutiveFailures).Msg("domain suspended by health check")
			sum.add(ActionSuspended)
			return
		}
	}

	ev, band := applyCertificate(d, r.certs.ProbeTLSCertificate(ctx, d.Hostname), now)
	d.UpdatedAt = now
	if err := r.domainStore.Update(ctx, d); err != nil {
		sum.add(outcome(err))
		log.Warn().Err(err).Msg("persist health check")
		return
	}
	sum.add(ActionChecked)

	if ev == nil {
		return
	}
	if err := r.notifier.Notify(ctx, *ev); err != nil {
		// The band stays unmarked so the next sweep sends it again.
		log.Warn().Err(err).Str("kind", ev.Kind).Msg("certificate notification failed")
		return
	}
	sum.add(ActionNotified)

	d.SSLNotifiedBand = string(band)
	if err := r.domainStore.Update(context.WithoutCancel(ctx), d); err != nil {
		log.Warn().Err(err).Str("band", string(band)).Msg("record certificate notification")
	}
}

// recoverTransient returns domains whose claiming worker never finished
// to the state they were claimed from, and retries activation for domains
// stuck issuing a certificate.
func (r *Reconciler) recoverTransient(ctx context.Context, d *model.CustomDomain, now time.Time) string {
	if now.Sub(d.StatusChangedAt) <= r.policy.StaleAfter {
		return ActionUnchanged
	}
	prev := d.Status
	switch prev {
	case model.DomainValidatingDNS:
		d.SetStatus(model.DomainAwaitingDNS, now)
	case model.DomainValidatingOwnership:
		d.SetStatus(model.DomainAwaitingVerification, now)
	case model.DomainIssuingSSL:
		return r.retryActivation(ctx, d)
	default:
		return ActionUnchanged
	}
	d.UpdatedAt = now
	if err := r.domainStore.Update(ctx, d); err != nil {
		r.logger.Warn().Err(err).Str("domain_id", d.ID).Msg("recover stale domain")
		return outcome(err)
	}
	r.logger.Info().Str("domain_id", d.ID).Str("from", string(prev)).Str("to", string(d.Status)).
		Msg("recovered stale domain")
	return ActionRecovered
}

func (r *Reconciler) retryActivation(ctx context.Context, d *model.CustomDomain) string {
	got, err := r.domains.ActivateDomain(ctx, d.ID)
	if err != nil {
		r.logger.Warn().Err(err).Str("domain_id", d.ID).Msg("retry activation")
		return outcome(err)
	}
	if got.Status != model.DomainActive {
		return ActionFailed
	}
	return ActionActivated
}

func (r *Reconciler) reconcileSubdomain(ctx context.Context, sub *model.PlatformSubdomain, now time.Time) string {
	changed, err := r.subdomains.Reconcile(ctx, sub, now)
	if err != nil {
		r.logger.Warn().Err(err).Str("fqdn", sub.FQDN).Msg("reconcile subdomain")
		return outcome(err)
	}
	if changed {
		return ActionSubdomain
	}
	return ActionUnchanged
}

// outcome classifies a per-record error. Losing a version race to a
// concurrent transition is expected and not a failure.
func outcome(err error) string {
	if errors.Is(err, core.ErrStaleRecord) || errors.Is(err, lifecycle.ErrInvalidTransition) {
		return ActionConflict
	}
	return ActionFailed
}

// RunLoop sweeps immediately and then every interval until ctx is done.
func (r *Reconciler) RunLoop(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Int("concurrency", r.concurrency).
		Msg("starting reconciliation loop")

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reconciliation loop stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	now := time.Now()
	if _, err := r.ReconcileOnce(ctx, now); err != nil {
		r.logger.Error().Err(err).Msg("periodic reconciliation failed")
		return
	}
	r.lastSweep.Store(now.UnixNano())
}

// Healthy reports an error when no sweep has completed within three
// intervals of now.
func (r *Reconciler) Healthy(now time.Time) error {
	last := r.lastSweep.Load()
	if last == 0 {
		return errors.New("no sweep completed yet")
	}
	if age := now.Sub(time.Unix(0, last)); age > 3*r.interval {
		return fmt.Errorf("last successful sweep %s ago", age.Round(time.Second))
	}
	return nil
}
