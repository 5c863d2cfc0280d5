package dnsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// ErrLookupFailed matches any *LookupError.
var ErrLookupFailed = errors.New("dns lookup failed")

// LookupError is a resolver failure other than a negative answer.
type LookupError struct {
	Host  string
	Type  string
	Rcode string
	Err   error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lookup %s %s: %v", e.Type, e.Host, e.Err)
	}
	return fmt.Sprintf("lookup %s %s: rcode %s", e.Type, e.Host, e.Rcode)
}

func (e *LookupError) Unwrap() error { return e.Err }

func (e *LookupError) Is(target error) bool { return target == ErrLookupFailed }

// Code returns the resolver code carried by the error, e.g. SERVFAIL or TIMEOUT.
func (e *LookupError) Code() string {
	if e.Rcode != "" {
		return e.Rcode
	}
	var netErr interface{ Timeout() bool }
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return "TIMEOUT"
	}
	return "NETWORK"
}

// Answer is the record set returned for one query. An empty Values slice is
// a valid negative result; NXDomain distinguishes a missing name from a
// name with no records of the queried type.
type Answer struct {
	Host     string
	Type     string
	Values   []string
	NXDomain bool
}

// Found reports whether any records were returned.
func (a Answer) Found() bool { return len(a.Values) > 0 }

// Resolver queries recursive nameservers directly with miekg/dns.
type Resolver struct {
	servers   []string
	udp       *dns.Client
	tcp       *dns.Client
	logger    zerolog.Logger
	tlsPort   string
	tlsConfig *tlsSettings

	httpsClient *http.Client
}

// NewResolver creates a resolver for the given nameservers (host:port). When
// servers is empty the system resolv.conf is used.
func NewResolver(servers []string, timeout time.Duration, logger zerolog.Logger, opts ...Option) (*Resolver, error) {
	if len(servers) == 0 {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("read resolv.conf: %w", err)
		}
		for _, s := range conf.Servers {
			servers = append(servers, s+":"+conf.Port)
		}
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("no nameservers configured")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	r := &Resolver{
		servers:   servers,
		udp:       &dns.Client{Net: "udp", Timeout: timeout},
		tcp:       &dns.Client{Net: "tcp", Timeout: timeout},
		logger:    logger.With().Str("component", "dns-resolver").Logger(),
		tlsPort:   "443",
		tlsConfig: &tlsSettings{probeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.httpsClient = newProbeClient(r.tlsConfig)
	return r, nil
}

// ResolveCNAME returns the CNAME targets of host, lower-cased without the trailing dot.
func (r *Resolver) ResolveCNAME(ctx context.Context, host string) (Answer, error) {
	return r.query(ctx, host, dns.TypeCNAME)
}

// ResolveA returns the IPv4 addresses of host.
func (r *Resolver) ResolveA(ctx context.Context, host string) (Answer, error) {
	return r.query(ctx, host, dns.TypeA)
}

// ResolveTXT returns the TXT records of host. Multi-string records are
// flattened into a single value each.
func (r *Resolver) ResolveTXT(ctx context.Context, host string) (Answer, error) {
	return r.query(ctx, host, dns.TypeTXT)
}

func (r *Resolver) query(ctx context.Context, host string, qtype uint16) (Answer, error) {
	typ := dns.TypeToString[qtype]
	ans := Answer{Host: host, Type: typ}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, err := r.exchange(ctx, msg, server)
		if err != nil {
			lastErr = err
			r.logger.Debug().Err(err).Str("server", server).Str("host", host).Str("type", typ).Msg("dns exchange failed")
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			ans.Values = extract(resp.Answer, qtype)
			return ans, nil
		case dns.RcodeNameError:
			ans.NXDomain = true
			return ans, nil
		default:
			return ans, &LookupError{Host: host, Type: typ, Rcode: dns.RcodeToString[resp.Rcode]}
		}
	}
	return ans, &LookupError{Host: host, Type: typ, Err: lastErr}
}

func (r *Resolver) exchange(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
	resp, _, err := r.udp.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}
	if resp.Truncated {
		resp, _, err = r.tcp.ExchangeContext(ctx, msg, server)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func extract(rrs []dns.RR, qtype uint16) []string {
	var out []string
	for _, rr := range rrs {
		switch v := rr.(type) {
		case *dns.CNAME:
			if qtype == dns.TypeCNAME {
				out = append(out, strings.ToLower(strings.TrimSuffix(v.Target, ".")))
			}
		case *dns.A:
			if qtype == dns.TypeA {
				out = append(out, v.A.String())
			}
		case *dns.TXT:
			if qtype == dns.TypeTXT {
				out = append(out, strings.Join(v.Txt, ""))
			}
		}
	}
	return out
}
