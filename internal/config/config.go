package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName       string
	DatabaseURL       string
	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	APIToken          string

	// PlatformName is used for the ownership TXT label and well-known file:
	// _<name>-verify.<host> and /.well-known/<name>-verify.txt.
	PlatformName     string
	ProxyCNAMETarget string
	PlatformIPs      []string

	ProxyAdminURL  string
	ProxyUpstreams map[string]string

	DNSProviderURL     string
	DNSProviderToken   string
	PlatformBaseDomain string
	SubdomainMode      string
	ProviderAppName    string
	AppCacheTTL        time.Duration

	DNSNameservers []string
	DNSTimeout     time.Duration

	DNSCheckInterval        time.Duration
	DNSCheckBackoffInterval time.Duration
	DNSFailureThreshold     int
	SSLWaitTimeout          time.Duration
	SSLWaitInterval         time.Duration

	ReconcileInterval    time.Duration
	ReconcileConcurrency int

	NotifyWebhookURL      string
	NotifyWebhookTemplate string
}

// Subdomain provisioning modes.
const (
	SubdomainModeDNS = "dns"
	SubdomainModeApp = "app"
)

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:       getEnv("SERVICE_NAME", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		HTTPListenAddr:    getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ":9090"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		APIToken:          getEnv("API_TOKEN", ""),

		PlatformName:     getEnv("PLATFORM_NAME", "platform"),
		ProxyCNAMETarget: strings.ToLower(getEnv("PROXY_CNAME_TARGET", "")),
		PlatformIPs:      getList("PLATFORM_IPS"),

		ProxyAdminURL: strings.TrimSuffix(getEnv("PROXY_ADMIN_URL", "http://localhost:2019"), "/"),
		ProxyUpstreams: map[string]string{
			"shop":    getEnv("PROXY_UPSTREAM_SHOP", "shops:8080"),
			"booking": getEnv("PROXY_UPSTREAM_BOOKING", "bookings:8080"),
			"page":    getEnv("PROXY_UPSTREAM_PAGE", "pages:8080"),
		},

		DNSProviderURL:     strings.TrimSuffix(getEnv("DNS_PROVIDER_URL", ""), "/"),
		DNSProviderToken:   getEnv("DNS_PROVIDER_TOKEN", ""),
		PlatformBaseDomain: strings.ToLower(getEnv("PLATFORM_BASE_DOMAIN", "")),
		SubdomainMode:      getEnv("SUBDOMAIN_MODE", SubdomainModeDNS),
		ProviderAppName:    getEnv("PROVIDER_APP_NAME", ""),

		DNSNameservers:        getList("DNS_NAMESERVERS"),
		NotifyWebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookTemplate: getEnv("NOTIFY_WEBHOOK_TEMPLATE", "generic"),
	}

	var err error
	durations := []struct {
		dst      *time.Duration
		key      string
		fallback time.Duration
	}{
		{&cfg.AppCacheTTL, "APP_CACHE_TTL", 10 * time.Minute},
		{&cfg.DNSTimeout, "DNS_TIMEOUT", 5 * time.Second},
		{&cfg.DNSCheckInterval, "DNS_CHECK_INTERVAL", 5 * time.Minute},
		{&cfg.DNSCheckBackoffInterval, "DNS_CHECK_BACKOFF_INTERVAL", 30 * time.Minute},
		{&cfg.SSLWaitTimeout, "SSL_WAIT_TIMEOUT", 60 * time.Second},
		{&cfg.SSLWaitInterval, "SSL_WAIT_INTERVAL", 5 * time.Second},
		{&cfg.ReconcileInterval, "RECONCILE_INTERVAL", 10 * time.Minute},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}
	if cfg.DNSFailureThreshold, err = getInt("DNS_FAILURE_THRESHOLD", 3); err != nil {
		return nil, err
	}
	if cfg.ReconcileConcurrency, err = getInt("RECONCILE_CONCURRENCY", 8); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the keys required by the given component ("api" or "worker").
func (c *Config) Validate(component string) error {
	var missing []string
	require := func(key, value string) {
		if value == "" {
			missing = append(missing, key)
		}
	}

	require("DATABASE_URL", c.DatabaseURL)
	require("PROXY_CNAME_TARGET", c.ProxyCNAMETarget)
	require("PROXY_ADMIN_URL", c.ProxyAdminURL)
	require("DNS_PROVIDER_URL", c.DNSProviderURL)
	require("DNS_PROVIDER_TOKEN", c.DNSProviderToken)
	require("PLATFORM_BASE_DOMAIN", c.PlatformBaseDomain)
	if len(c.PlatformIPs) == 0 {
		missing = append(missing, "PLATFORM_IPS")
	}
	if component == "api" {
		require("API_TOKEN", c.APIToken)
	}
	if c.SubdomainMode == SubdomainModeApp {
		require("PROVIDER_APP_NAME", c.ProviderAppName)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config for %s: %s", component, strings.Join(missing, ", "))
	}

	if c.SubdomainMode != SubdomainModeDNS && c.SubdomainMode != SubdomainModeApp {
		return fmt.Errorf("SUBDOMAIN_MODE must be %q or %q, got %q", SubdomainModeDNS, SubdomainModeApp, c.SubdomainMode)
	}
	for _, ip := range c.PlatformIPs {
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("PLATFORM_IPS: %q is not an IP address", ip)
		}
	}
	if c.NotifyWebhookTemplate != "generic" && c.NotifyWebhookTemplate != "slack" {
		return fmt.Errorf("NOTIFY_WEBHOOK_TEMPLATE must be \"generic\" or \"slack\", got %q", c.NotifyWebhookTemplate)
	}
	if c.DNSFailureThreshold < 1 {
		return fmt.Errorf("DNS_FAILURE_THRESHOLD must be at least 1")
	}
	if c.ReconcileConcurrency < 1 {
		return fmt.Errorf("RECONCILE_CONCURRENCY must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
