package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/domains/internal/core/coretest"
	"github.com/edvin/domains/internal/dnsclient"
	"github.com/edvin/domains/internal/lifecycle"
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/notify"
	"github.com/edvin/domains/internal/ownership"
)

type env struct {
	domains  *coretest.DomainStore
	subs     *coretest.SubdomainStore
	resolver *mockResolver
	verifier *mockVerifier
	routes   *mockRoutes
	certs    *mockCerts
	notifier *mockNotifier
	prov     *mockProvisioner
	prober   *mockProber
	now      time.Time
	manager  *lifecycle.DomainManager
	rec      *Reconciler
}

func testPolicy() lifecycle.Policy {
	p := lifecycle.DefaultPolicy()
	p.PlatformName = "acme"
	p.CNAMETarget = "proxy.platform.io"
	p.PlatformIPs = []string{"203.0.113.10"}
	p.BaseDomain = "platform.io"
	return p
}

func newEnv(t *testing.T, domains ...*model.CustomDomain) *env {
	t.Helper()
	e := &env{
		domains:  coretest.NewDomainStore(domains...),
		subs:     coretest.NewSubdomainStore(),
		resolver: &mockResolver{},
		verifier: &mockVerifier{},
		routes:   &mockRoutes{},
		certs:    &mockCerts{},
		notifier: &mockNotifier{},
		prov:     &mockProvisioner{},
		prober:   &mockProber{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	e.build()
	return e
}

func (e *env) build() {
	policy := testPolicy()
	e.manager = lifecycle.NewDomainManager(lifecycle.DomainDeps{
		Store:    e.domains,
		Resolver: e.resolver,
		Verifier: e.verifier,
		Routes:   e.routes,
		Certs:    e.certs,
		Notifier: e.notifier,
	}, policy, zerolog.Nop(),
		lifecycle.WithClock(func() time.Time { return e.now }),
		lifecycle.WithSleep(func(context.Context, time.Duration) error { return nil }))
	subs := lifecycle.NewSubdomainManager(lifecycle.SubdomainDeps{
		Store:       e.subs,
		Provisioner: e.prov,
		Prober:      e.prober,
	}, policy, zerolog.Nop(), lifecycle.WithClock(func() time.Time { return e.now }))
	e.rec = New(Deps{
		DomainStore:    e.domains,
		SubdomainStore: e.subs,
		Domains:        e.manager,
		Subdomains:     subs,
		Certs:          e.certs,
		Notifier:       e.notifier,
	}, policy, time.Minute, 4, zerolog.Nop())
}

func (e *env) sweep(t *testing.T) *Summary {
	t.Helper()
	sum, err := e.rec.ReconcileOnce(context.Background(), e.now)
	require.NoError(t, err)
	return sum
}

func (e *env) domain(t *testing.T, id string) *model.CustomDomain {
	t.Helper()
	d, err := e.domains.Get(context.Background(), id)
	require.NoError(t, err)
	return d
}

func serving(id, host string, status model.DomainStatus, at time.Time) *model.CustomDomain {
	return &model.CustomDomain{
		ID:                id,
		TenantID:          "tenant-1",
		Hostname:          host,
		Target:            model.ShopTarget("shop-1"),
		VerificationToken: "acme-verify=token",
		Verified:          true,
		Status:            status,
		StatusChangedAt:   at,
		CreatedAt:         at,
		UpdatedAt:         at,
	}
}

func certFor(host string, notAfter time.Time) *dnsclient.CertInfo {
	return &dnsclient.CertInfo{
		Issuer:    "R3",
		Subject:   host,
		DNSNames:  []string{host},
		NotBefore: notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:  notAfter,
	}
}

func countIssues(issues []model.Issue, code string) int {
	n := 0
	for _, is := range issues {
		if is.Code == code {
			n++
		}
	}
	return n
}

func TestClassify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	tests := []struct {
		left time.Duration
		want Band
	}{
		{90 * day, BandOK},
		{31 * day, BandOK},
		{30 * day, BandWarning},
		{14 * day, BandWarning},
		{13 * day, BandCritical},
		{5 * day, BandCritical},
		{time.Hour, BandCritical},
		{0, BandExpired},
		{-3 * day, BandExpired},
	}
	for _, tt := range tests {
		t.Run(tt.left.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(certFor("a.example.com", now.Add(tt.left)), now))
		})
	}
}

func TestExpiringCertificateFlaggedOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	host := "shop.example.com"

	e.resolver.On("ResolveCNAME", mock.Anything, host).
		Return(dnsclient.Answer{Type: "CNAME", Values: []string{"proxy.platform.io."}}, nil)
	e.verifier.On("CheckOwnership", mock.Anything, host, mock.Anything).
		Return(ownership.Result{Valid: true, Method: model.VerifyMethodDNSTXT})
	e.routes.On("AddRoute", mock.Anything, host, model.ShopTarget("shop-1")).Return(nil)
	e.certs.On("ProbeTLSCertificate", mock.Anything, host).Return(certFor(host, e.now.Add(5*24*time.Hour)))
	e.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	d, err := e.manager.CreateDomain(ctx, "tenant-1", host, model.ShopTarget("shop-1"))
	require.NoError(t, err)
	d, err = e.manager.RequestDNSCheck(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, model.DomainAwaitingVerification, d.Status)
	d, err = e.manager.RequestOwnershipVerification(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, model.DomainActive, d.Status)

	sum := e.sweep(t)
	assert.Equal(t, 1, sum.Count(ActionChecked))
	assert.Equal(t, 1, sum.Count(ActionNotified))

	got := e.domain(t, d.ID)
	assert.Equal(t, model.DomainSSLExpiring, got.Status)
	assert.Equal(t, 1, countIssues(got.Warnings, model.IssueSSLExpiringSoon))
	assert.Equal(t, string(BandCritical), got.SSLNotifiedBand)

	e.now = e.now.Add(10 * time.Minute)
	e.sweep(t)

	got = e.domain(t, d.ID)
	assert.Equal(t, model.DomainSSLExpiring, got.Status)
	assert.Equal(t, 1, countIssues(got.Warnings, model.IssueSSLExpiringSoon))
	e.notifier.AssertNumberOfCalls(t, "Notify", 1)
	e.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(ev notify.Event) bool {
		return ev.Kind == notify.EventSSLExpiring && ev.Severity == model.SeverityCritical && ev.Hostname == host
	}))
}

func TestFailedCertificateNoticeIsRetried(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newEnv(t, serving("dom-1", "shop.example.com", model.DomainActive, now))
	e.resolver.On("ResolveCNAME", mock.Anything, mock.Anything).
		Return(dnsclient.Answer{Type: "CNAME", Values: []string{"proxy.platform.io"}}, nil)
	e.certs.On("ProbeTLSCertificate", mock.Anything, mock.Anything).Return(certFor("shop.example.com", now.Add(5*24*time.Hour)))
	e.notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("webhook down")).Once()
	e.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	sum := e.sweep(t)
	assert.Equal(t, 1, sum.Count(ActionChecked))
	assert.Equal(t, 0, sum.Count(ActionNotified))
	got := e.domain(t, "dom-1")
	assert.Equal(t, model.DomainSSLExpiring, got.Status)
	assert.Equal(t, string(BandOK), got.SSLNotifiedBand)

	e.now = e.now.Add(10 * time.Minute)
	sum = e.sweep(t)
	assert.Equal(t, 1, sum.Count(ActionNotified))
	got = e.domain(t, "dom-1")
	assert.Equal(t, string(BandCritical), got.SSLNotifiedBand)

	e.now = e.now.Add(10 * time.Minute)
	e.sweep(t)
	e.notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestSuspendsAfterRepeatedDNSFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newEnv(t, serving("dom-1", "shop.example.com", model.DomainActive, now))

	e.resolver.On("ResolveCNAME", mock.Anything, "shop.example.com").
		Return(dnsclient.Answer{Type: "CNAME", Values: []string{"parked.registrar.net"}}, nil)
	e.certs.On("ProbeTLSCertificate", mock.Anything, mock.Anything).Return(certFor("shop.example.com", now.Add(80*24*time.Hour)))
	e.routes.On("RemoveRoute", mock.Anything, "shop.example.com").Return(nil)
	e.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	for i := 1; i <= 2; i++ {
		e.sweep(t)
		got := e.domain(t, "dom-1")
		assert.Equal(t, model.DomainActive, got.Status)
		assert.Equal(t, i, got.ConsecutiveFailures)
		assert.True(t, model.HasIssue(got.Warnings, model.IssueHealthCheckFailing))
		assert.True(t, model.HasIssue(got.Errors, model.IssueCNAMEWrongTarget))
		e.now = e.now.Add(10 * time.Minute)
	}

	sum := e.sweep(t)
	assert.Equal(t, 1, sum.Count(ActionSuspended))

	got := e.domain(t, "dom-1")
	assert.Equal(t, model.DomainSuspended, got.Status)
	require.NotNil(t, got.SuspendedReason)
	assert.Contains(t, *got.SuspendedReason, "3 consecutive")
	e.routes.AssertCalled(t, "RemoveRoute", mock.Anything, "shop.example.com")
	e.certs.AssertNumberOfCalls(t, "ProbeTLSCertificate", 2)
	e.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(ev notify.Event) bool {
		return ev.Kind == notify.EventSuspended
	}))

	// Suspended domains are no longer swept.
	e.sweep(t)
	e.resolver.AssertNumberOfCalls(t, "ResolveCNAME", 3)
}

func TestDNSRecoveryResetsFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := serving("dom-1", "shop.example.com", model.DomainActive, now)
	d.ConsecutiveFailures = 2
	d.Warnings = []model.Issue{{Code: model.IssueHealthCheckFailing, Severity: model.SeverityWarning}}
	d.Errors = []model.Issue{{Code: model.IssueCNAMEWrongTarget, Severity: model.SeverityCritical}}
	e := newEnv(t, d)

	e.resolver.On("ResolveCNAME", mock.Anything, mock.Anything).
		Return(dnsclient.Answer{Type: "CNAME", Values: []string{"proxy.platform.io"}}, nil)
	e.certs.On("ProbeTLSCertificate", mock.Anything, mock.Anything).Return(certFor("shop.example.com", now.Add(80*24*time.Hour)))

	e.sweep(t)

	got := e.domain(t, "dom-1")
	assert.Equal(t, 0, got.ConsecutiveFailures)
	assert.Empty(t, got.Warnings)
	assert.Empty(t, got.Errors)
	assert.Equal(t, model.DomainActive, got.Status)
}

func TestCertificateBands(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	tests := []struct {
		name       string
		status     model.DomainStatus
		notified   Band
		left       time.Duration
		wantStatus model.DomainStatus
		wantNotify string
	}{
		{"healthy", model.DomainActive, BandOK, 60 * day, model.DomainActive, ""},
		{"warning", model.DomainActive, BandOK, 20 * day, model.DomainActive, notify.EventSSLExpiring},
		{"warning already sent", model.DomainActive, BandWarning, 20 * day, model.DomainActive, ""},
		{"escalates to critical", model.DomainActive, BandWarning, 10 * day, model.DomainSSLExpiring, notify.EventSSLExpiring},
		{"expired", model.DomainSSLExpiring, BandCritical, -day, model.DomainSSLError, notify.EventSSLExpired},
		{"renewed", model.DomainSSLError, BandExpired, 89 * day, model.DomainActive, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := serving("dom-1", "shop.example.com", tt.status, now.Add(-time.Hour))
			d.SSLNotifiedBand = string(tt.notified)
			e := newEnv(t, d)
			e.resolver.On("ResolveCNAME", mock.Anything, mock.Anything).
				Return(dnsclient.Answer{Type: "CNAME", Values: []string{"proxy.platform.io"}}, nil)
			e.certs.On("ProbeTLSCertificate", mock.Anything, mock.Anything).Return(certFor("shop.example.com", now.Add(tt.left)))
			e.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

			e.sweep(t)

			got := e.domain(t, "dom-1")
			assert.Equal(t, tt.wantStatus, got.Status)
			if tt.wantNotify == "" {
				e.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
			} else {
				e.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(ev notify.Event) bool {
					return ev.Kind == tt.wantNotify
				}))
			}
			if tt.wantStatus == model.DomainActive && tt.left > 30*day {
				assert.False(t, model.HasIssue(got.Warnings, model.IssueSSLExpiringSoon))
				assert.False(t, model.HasIssue(got.Errors, model.IssueSSLExpired))
				assert.Equal(t, string(BandOK), got.SSLNotifiedBand)
			}
		})
	}
}

func TestMissingCertificateWarns(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := serving("dom-1", "shop.example.com", model.DomainActive, now)
	d.Warnings = []model.Issue{{Code: model.IssueSSLPending, Severity: model.SeverityInfo}}
	e := newEnv(t, d)
	e.resolver.On("ResolveCNAME", mock.Anything, mock.Anything).
		Return(dnsclient.Answer{Type: "CNAME", Values: []string{"proxy.platform.io"}}, nil)
	e.certs.On("ProbeTLSCertificate", mock.Anything, mock.Anything).Return(nil)

	e.sweep(t)

	got := e.domain(t, "dom-1")
	assert.Equal(t, model.DomainActive, got.Status)
	assert.True(t, model.HasIssue(got.Warnings, model.IssueSSLUnreachable))
	require.NotNil(t, got.LastSSLCheck)
	assert.False(t, got.LastSSLCheck.Success)
}

func TestRecoversStaleTransientStates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stuckDNS := serving("dom-1", "a.example.com", model.DomainValidatingDNS, now.Add(-20*time.Minute))
	stuckOwnership := serving("dom-2", "b.example.com", model.DomainValidatingOwnership, now.Add(-20*time.Minute))
	busy := serving("dom-3", "c.example.com", model.DomainValidatingDNS, now.Add(-time.Minute))
	e := newEnv(t, stuckDNS, stuckOwnership, busy)

	sum := e.sweep(t)
	assert.Equal(t, 2, sum.Count(ActionRecovered))
	assert.Equal(t, 1, sum.Count(ActionUnchanged))

	assert.Equal(t, model.DomainAwaitingDNS, e.domain(t, "dom-1").Status)
	assert.Equal(t, model.DomainAwaitingVerification, e.domain(t, "dom-2").Status)
	assert.Equal(t, model.DomainValidatingDNS, e.domain(t, "dom-3").Status)
}

func TestRetriesActivation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	routeFailed := serving("dom-1", "a.example.com", model.DomainSSLError, now.Add(-time.Minute))
	routeFailed.Errors = []model.Issue{{Code: model.IssueRouteAddFailed, Severity: model.SeverityCritical}}
	stuck := serving("dom-2", "b.example.com", model.DomainIssuingSSL, now.Add(-time.Hour))
	e := newEnv(t, routeFailed, stuck)

	e.routes.On("AddRoute", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	e.certs.On("ProbeTLSCertificate", mock.Anything, "a.example.com").Return(certFor("a.example.com", now.Add(80*24*time.Hour)))
	e.certs.On("ProbeTLSCertificate", mock.Anything, "b.example.com").Return(certFor("b.example.com", now.Add(80*24*time.Hour)))

	sum := e.sweep(t)
	assert.Equal(t, 2, sum.Count(ActionActivated))

	first := e.domain(t, "dom-1")
	assert.Equal(t, model.DomainActive, first.Status)
	assert.False(t, model.HasIssue(first.Errors, model.IssueRouteAddFailed))
	assert.Equal(t, model.DomainActive, e.domain(t, "dom-2").Status)
	// Route-failed domains skip the DNS health check.
	e.resolver.AssertNotCalled(t, "ResolveCNAME", mock.Anything, mock.Anything)
}

func TestPromotesPendingSubdomains(t *testing.T) {
	e := newEnv(t)
	url := "https://myshop.shops.platform.io"
	require.NoError(t, e.subs.Create(context.Background(), &model.PlatformSubdomain{
		ID:        "sub-1",
		OwnerID:   "shop-1",
		Namespace: model.NamespaceShop,
		Slug:      "myshop",
		FQDN:      "myshop.shops.platform.io",
		Status:    model.SubdomainActivating,
		URL:       &url,
		CreatedAt: e.now,
		UpdatedAt: e.now,
	}))
	require.NoError(t, e.subs.Create(context.Background(), &model.PlatformSubdomain{
		ID:        "sub-2",
		OwnerID:   "shop-2",
		Namespace: model.NamespaceShop,
		Slug:      "gone",
		FQDN:      "gone.shops.platform.io",
		Status:    model.SubdomainActivating,
		CreatedAt: e.now,
		UpdatedAt: e.now,
	}))
	e.prov.On("SubdomainExists", mock.Anything, "myshop", model.NamespaceShop).Return(true, nil)
	e.prov.On("SubdomainExists", mock.Anything, "gone", model.NamespaceShop).Return(false, nil)
	e.prober.On("ProbeHTTPS", mock.Anything, "myshop.shops.platform.io").Return(nil)

	sum := e.sweep(t)
	assert.Equal(t, 2, sum.Count(ActionSubdomain))

	active, err := e.subs.GetByOwner(context.Background(), model.NamespaceShop, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubdomainActive, active.Status)
	gone, err := e.subs.GetByOwner(context.Background(), model.NamespaceShop, "shop-2")
	require.NoError(t, err)
	assert.Equal(t, model.SubdomainError, gone.Status)
}

type failingStore struct {
	*coretest.DomainStore
}

func (failingStore) ListByStatus(context.Context, ...model.DomainStatus) ([]model.CustomDomain, error) {
	return nil, errors.New("connection refused")
}

func TestListFailureAbortsSweep(t *testing.T) {
	e := newEnv(t)
	e.rec.domainStore = failingStore{e.domains}

	_, err := e.rec.ReconcileOnce(context.Background(), e.now)
	assert.Error(t, err)
}

func TestHealthy(t *testing.T) {
	r := New(Deps{}, lifecycle.DefaultPolicy(), time.Minute, 1, zerolog.Nop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Error(t, r.Healthy(now))

	r.lastSweep.Store(now.UnixNano())
	assert.NoError(t, r.Healthy(now.Add(2*time.Minute)))
	assert.ErrorContains(t, r.Healthy(now.Add(4*time.Minute)), "last successful sweep")
}
