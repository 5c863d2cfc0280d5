// Package ownership proves that a tenant controls a hostname, either through
// a DNS TXT record or a file served at a well-known HTTPS path.
package ownership

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/domains/internal/dnsclient"
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/platform"
)

// TXTResolver is the subset of the DNS client the verifier needs.
type TXTResolver interface {
	ResolveTXT(ctx context.Context, host string) (dnsclient.Answer, error)
}

// Failure is one reason a proof method did not succeed.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of an ownership check. When Valid is false,
// Failures holds one entry per method attempted.
type Result struct {
	Valid    bool
	Method   string
	Failures []Failure
}

// Verifier checks ownership proofs for a single platform name.
type Verifier struct {
	resolver     TXTResolver
	httpClient   *http.Client
	platformName string
	fileURL      func(host string) string
	logger       zerolog.Logger
}

// Option customizes a Verifier.
type Option func(*Verifier)

// WithFileURL overrides how the well-known file URL is built for a host.
func WithFileURL(fn func(host string) string) Option {
	return func(v *Verifier) { v.fileURL = fn }
}

// WithHTTPTimeout bounds the well-known file fetch.
func WithHTTPTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.httpClient.Timeout = d }
}

// NewVerifier creates a Verifier. The HTTP fetch skips certificate
// validation because the certificate for host usually does not exist yet.
func NewVerifier(resolver TXTResolver, platformName string, logger zerolog.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		resolver:     resolver,
		platformName: platformName,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // cert may not exist yet
			},
		},
		logger: logger.With().Str("component", "ownership-verifier").Logger(),
	}
	v.fileURL = func(host string) string {
		return "https://" + host + platform.VerifyFilePath(v.platformName)
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CheckOwnership tries the DNS TXT proof, then the HTTP file proof, and
// stops at the first that succeeds.
func (v *Verifier) CheckOwnership(ctx context.Context, host, expectedToken string) Result {
	var res Result

	f := v.checkTXT(ctx, host, expectedToken)
	if f == nil {
		return Result{Valid: true, Method: model.VerifyMethodDNSTXT}
	}
	res.Failures = append(res.Failures, *f)

	f = v.checkHTTPFile(ctx, host, expectedToken)
	if f == nil {
		return Result{Valid: true, Method: model.VerifyMethodHTTPFile}
	}
	res.Failures = append(res.Failures, *f)

	v.logger.Debug().Str("host", host).Interface("failures", res.Failures).Msg("ownership not proven")
	return res
}

func (v *Verifier) checkTXT(ctx context.Context, host, token string) *Failure {
	name := platform.VerifyTXTName(v.platformName, host)
	ans, err := v.resolver.ResolveTXT(ctx, name)
	if err != nil {
		code := "UNKNOWN"
		var lerr *dnsclient.LookupError
		if errors.As(err, &lerr) {
			code = lerr.Code()
		}
		return &Failure{Code: model.IssueTXTLookupFailed, Message: fmt.Sprintf("TXT lookup for %s failed (%s)", name, code)}
	}
	if !ans.Found() {
		return &Failure{Code: model.IssueTXTNotFound, Message: fmt.Sprintf("no TXT record found at %s", name)}
	}
	for _, val := range ans.Values {
		if strings.TrimSpace(strings.Trim(val, `"`)) == token {
			return nil
		}
	}
	return &Failure{Code: model.IssueTXTMismatch, Message: fmt.Sprintf("TXT record at %s does not contain the verification token", name)}
}

func (v *Verifier) checkHTTPFile(ctx context.Context, host, token string) *Failure {
	url := v.fileURL(host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Failure{Code: model.IssueHTTPFileFetch, Message: fmt.Sprintf("build request for %s: %v", url, err)}
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return &Failure{Code: model.IssueHTTPFileFetch, Message: fmt.Sprintf("fetch %s: %v", url, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Failure{Code: model.IssueHTTPFileNotFound, Message: fmt.Sprintf("%s returned status %d", url, resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return &Failure{Code: model.IssueHTTPFileFetch, Message: fmt.Sprintf("read %s: %v", url, err)}
	}
	if strings.TrimSpace(string(body)) != token {
		return &Failure{Code: model.IssueHTTPFileMismatch, Message: fmt.Sprintf("%s does not contain the verification token", url)}
	}
	return nil
}
