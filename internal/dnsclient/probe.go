package dnsclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"time"
)

type tlsSettings struct {
	probeTimeout time.Duration
	rootCAs      *x509.CertPool
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithTLSPort overrides port 443 for TLS and HTTPS probes.
func WithTLSPort(port string) Option {
	return func(r *Resolver) { r.tlsPort = port }
}

// WithProbeTimeout bounds TLS handshakes and HTTPS probes.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.tlsConfig.probeTimeout = d }
}

// WithRootCAs sets the trust roots for verified HTTPS probes.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(r *Resolver) { r.tlsConfig.rootCAs = pool }
}

// CertInfo describes the leaf certificate a host currently serves.
type CertInfo struct {
	Issuer    string
	Subject   string
	DNSNames  []string
	NotBefore time.Time
	NotAfter  time.Time
}

// DaysLeft returns the whole days until expiry, rounded down. Negative
// values mean the certificate has expired.
func (c *CertInfo) DaysLeft(now time.Time) int {
	d := c.NotAfter.Sub(now)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

// ProbeTLSCertificate performs a TLS handshake with host and returns the
// leaf certificate it presents. Verification is disabled so untrusted and
// expired certificates are still reported. Returns nil when the handshake
// does not complete within the probe timeout.
func (r *Resolver) ProbeTLSCertificate(ctx context.Context, host string) *CertInfo {
	ctx, cancel := context.WithTimeout(ctx, r.tlsConfig.probeTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: r.tlsConfig.probeTimeout},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true, //nolint:gosec // reading the served certificate, not trusting it
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, r.tlsPort))
	if err != nil {
		r.logger.Debug().Err(err).Str("host", host).Msg("tls probe failed")
		return nil
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil
	}
	leaf := state.PeerCertificates[0]
	return &CertInfo{
		Issuer:    leaf.Issuer.String(),
		Subject:   leaf.Subject.String(),
		DNSNames:  leaf.DNSNames,
		NotBefore: leaf.NotBefore,
		NotAfter:  leaf.NotAfter,
	}
}

// ProbeHTTPS requests https://host/health with certificate verification
// enabled. Any HTTP response counts as reachable; the status code is not
// inspected because only a trusted handshake is being confirmed.
func (r *Resolver) ProbeHTTPS(ctx context.Context, host string) error {
	addr := host
	if r.tlsPort != "443" {
		addr = net.JoinHostPort(host, r.tlsPort)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+addr+"/health", nil)
	if err != nil {
		return fmt.Errorf("build https probe request: %w", err)
	}
	resp, err := r.httpsClient.Do(req)
	if err != nil {
		return fmt.Errorf("https probe %s: %w", host, err)
	}
	resp.Body.Close()
	return nil
}

// newProbeClient builds the client shared by all HTTPS probes. Keep-alives
// are off so every probe performs a fresh handshake and leaves no idle
// connection behind.
func newProbeClient(settings *tlsSettings) *http.Client {
	return &http.Client{
		Timeout: settings.probeTimeout,
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{RootCAs: settings.rootCAs},
			TLSHandshakeTimeout: settings.probeTimeout,
			DisableKeepAlives:   true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}
