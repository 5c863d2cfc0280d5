// Package dnsprovider talks to the cloud DNS provider that hosts the
// platform base domain. It provisions platform subdomains either as DNS
// objects with an A record or as domains attached to a provider app.
package dnsprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsConflict reports whether err is a provider 409.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// Subdomain is a subdomain object under the platform base domain.
type Subdomain struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	FQDN string `json:"fqdn"`
}

// Record is a DNS record at the provider.
type Record struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Value string `json:"value"`
	TTL   int    `json:"ttl,omitempty"`
}

// App is a provider-hosted application that custom domains can attach to.
type App struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// AppDomain is a domain attached to an App.
type AppDomain struct {
	Domain string `json:"domain"`
	Status string `json:"status,omitempty"`
}

type Client struct {
	baseURL    string
	token      string
	baseDomain string
	publicIP   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a provider client for subdomains of baseDomain whose
// A records point at publicIP.
func NewClient(baseURL, token, baseDomain, publicIP string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		baseDomain: baseDomain,
		publicIP:   publicIP,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "dns-provider-client").Logger(),
	}
}

// BaseDomain returns the domain subdomains are created under.
func (c *Client) BaseDomain() string { return c.baseDomain }

// do sends a request and decodes a JSON response into out when out is
// non-nil. Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	url := c.baseURL + path

	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("%s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("url", url).Msg("provider request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	c.logger.Debug().
		Str("method", method).
		Str("url", url).
		RawJSON("request", jsonOrNull(reqBody)).
		Int("status", resp.StatusCode).
		Str("response", string(respBody)).
		Msg("provider call")

	if resp.StatusCode >= 300 {
		return &APIError{Method: method, URL: url, Status: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func jsonOrNull(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
