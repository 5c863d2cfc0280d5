// Package app builds the lifecycle services both binaries run from the
// loaded configuration.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/domains/internal/config"
	"github.com/edvin/domains/internal/core"
	"github.com/edvin/domains/internal/dnsclient"
	"github.com/edvin/domains/internal/dnsprovider"
	"github.com/edvin/domains/internal/lifecycle"
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/notify"
	"github.com/edvin/domains/internal/ownership"
	"github.com/edvin/domains/internal/proxyroute"
)

type Services struct {
	DomainStore    *core.DomainStore
	SubdomainStore *core.SubdomainStore
	Resolver       *dnsclient.Resolver
	Provisioner    lifecycle.Provisioner
	Notifier       notify.Notifier
	Domains        *lifecycle.DomainManager
	Subdomains     *lifecycle.SubdomainManager
	Policy         lifecycle.Policy
}

// PolicyFromConfig maps configuration onto the lifecycle timing rules.
func PolicyFromConfig(cfg *config.Config) lifecycle.Policy {
	p := lifecycle.DefaultPolicy()
	p.PlatformName = cfg.PlatformName
	p.CNAMETarget = cfg.ProxyCNAMETarget
	p.PlatformIPs = cfg.PlatformIPs
	p.BaseDomain = cfg.PlatformBaseDomain
	p.CheckInterval = cfg.DNSCheckInterval
	p.BackoffInterval = cfg.DNSCheckBackoffInterval
	p.FailureThreshold = cfg.DNSFailureThreshold
	p.SSLWaitTimeout = cfg.SSLWaitTimeout
	p.SSLWaitInterval = cfg.SSLWaitInterval
	return p
}

func NewServices(cfg *config.Config, db core.DB, logger zerolog.Logger) (*Services, error) {
	resolver, err := dnsclient.NewResolver(cfg.DNSNameservers, cfg.DNSTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	upstreams := make(map[model.TargetType]string, len(cfg.ProxyUpstreams))
	for typ, addr := range cfg.ProxyUpstreams {
		upstreams[model.TargetType(typ)] = addr
	}
	routes := proxyroute.NewClient(cfg.ProxyAdminURL, upstreams, logger)

	var publicIP string
	if len(cfg.PlatformIPs) > 0 {
		publicIP = cfg.PlatformIPs[0]
	}
	provider := dnsprovider.NewClient(cfg.DNSProviderURL, cfg.DNSProviderToken, cfg.PlatformBaseDomain, publicIP, logger)
	var provisioner lifecycle.Provisioner = provider
	if cfg.SubdomainMode == config.SubdomainModeApp {
		cache := dnsprovider.NewAppLookupCache(provider, cfg.ProviderAppName, publicIP, cfg.AppCacheTTL, logger)
		provisioner = dnsprovider.NewAppDomains(provider, cache)
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyWebhookTemplate))
	}

	policy := PolicyFromConfig(cfg)
	s := &Services{
		DomainStore:    core.NewDomainStore(db),
		SubdomainStore: core.NewSubdomainStore(db),
		Resolver:       resolver,
		Provisioner:    provisioner,
		Notifier:       notifiers,
		Policy:         policy,
	}
	s.Domains = lifecycle.NewDomainManager(lifecycle.DomainDeps{
		Store:    s.DomainStore,
		Resolver: resolver,
		Verifier: ownership.NewVerifier(resolver, cfg.PlatformName, logger),
		Routes:   routes,
		Certs:    resolver,
		Notifier: notifiers,
	}, policy, logger)
	s.Subdomains = lifecycle.NewSubdomainManager(lifecycle.SubdomainDeps{
		Store:       s.SubdomainStore,
		Provisioner: provisioner,
		Prober:      resolver,
	}, policy, logger)

	return s, nil
}
