// Package proxyroute manages host-to-backend routes on the edge proxy's
// admin API.
package proxyroute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/platform"
)

// ErrUnavailable is returned when the admin API cannot be reached.
var ErrUnavailable = errors.New("proxy admin API unavailable")

// DefaultRoutesPath is where new routes are appended on the edge proxy.
const DefaultRoutesPath = "/config/apps/http/servers/edge/routes"

type Client struct {
	baseURL    string
	routesPath string
	upstreams  map[model.TargetType]string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithRoutesPath overrides the path routes are created under.
func WithRoutesPath(path string) Option {
	return func(c *Client) { c.routesPath = path }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a route client. upstreams maps each target type to the
// dial address of the backend that serves it.
func NewClient(baseURL string, upstreams map[model.TargetType]string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		routesPath: DefaultRoutesPath,
		upstreams:  upstreams,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "proxy-route-client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Route is the JSON route object understood by the proxy admin API.
type Route struct {
	ID       string         `json:"@id"`
	Match    []RouteMatch   `json:"match"`
	Handle   []RouteHandler `json:"handle"`
	Terminal bool           `json:"terminal"`
}

type RouteMatch struct {
	Host []string `json:"host"`
}

type RouteHandler struct {
	Handler   string         `json:"handler"`
	Upstreams []Upstream     `json:"upstreams,omitempty"`
	Headers   *HeaderOptions `json:"headers,omitempty"`
}

type Upstream struct {
	Dial string `json:"dial"`
}

type HeaderOptions struct {
	Request *HeaderOps `json:"request,omitempty"`
}

type HeaderOps struct {
	Set map[string][]string `json:"set,omitempty"`
}

// BuildRoute returns the route binding host to the backend for target.
func (c *Client) BuildRoute(host string, target model.Target) (Route, error) {
	upstream, ok := c.upstreams[target.Type()]
	if !ok || upstream == "" {
		return Route{}, fmt.Errorf("no upstream configured for target type %q", target.Type())
	}
	return Route{
		ID:    platform.RouteID(host),
		Match: []RouteMatch{{Host: []string{host}}},
		Handle: []RouteHandler{{
			Handler:   "reverse_proxy",
			Upstreams: []Upstream{{Dial: upstream}},
			Headers: &HeaderOptions{Request: &HeaderOps{Set: map[string][]string{
				"X-Target-Type":    {string(target.Type())},
				"X-Target-Id":      {target.ID()},
				"X-Forwarded-Host": {host},
			}}},
		}},
		Terminal: true,
	}, nil
}

// AddRoute creates or updates the route for host. An existing route with
// the same id is overwritten in place.
func (c *Client) AddRoute(ctx context.Context, host string, target model.Target) error {
	route, err := c.BuildRoute(host, target)
	if err != nil {
		return err
	}

	exists, err := c.RouteExists(ctx, host)
	if err != nil {
		return err
	}
	if exists {
		return c.patchRoute(ctx, route)
	}

	status, body, err := c.do(ctx, http.MethodPost, c.baseURL+c.routesPath, route)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusConflict:
		// Route id already claimed by a concurrent add.
		return c.patchRoute(ctx, route)
	case status >= 300:
		return fmt.Errorf("add route %s: status %d: %s", route.ID, status, body)
	}
	c.logger.Info().Str("host", host).Str("route_id", route.ID).Msg("route added")
	return nil
}

func (c *Client) patchRoute(ctx context.Context, route Route) error {
	status, body, err := c.do(ctx, http.MethodPatch, c.idURL(route.ID), route)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("update route %s: status %d: %s", route.ID, status, body)
	}
	c.logger.Info().Str("route_id", route.ID).Msg("route updated")
	return nil
}

// RemoveRoute deletes the route for host. A missing route is not an error.
func (c *Client) RemoveRoute(ctx context.Context, host string) error {
	id := platform.RouteID(host)
	status, body, err := c.do(ctx, http.MethodDelete, c.idURL(id), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound || isUnknownID(status, body) {
		return nil
	}
	if status >= 300 {
		return fmt.Errorf("remove route %s: status %d: %s", id, status, body)
	}
	c.logger.Info().Str("host", host).Str("route_id", id).Msg("route removed")
	return nil
}

// RouteExists reports whether a route for host is configured.
func (c *Client) RouteExists(ctx context.Context, host string) (bool, error) {
	id := platform.RouteID(host)
	status, body, err := c.do(ctx, http.MethodGet, c.idURL(id), nil)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusOK:
		return true, nil
	case status == http.StatusNotFound:
		return false, nil
	case isUnknownID(status, body):
		return false, nil
	default:
		return false, fmt.Errorf("get route %s: status %d: %s", id, status, body)
	}
}

func (c *Client) idURL(id string) string {
	return fmt.Sprintf("%s/id/%s", c.baseURL, id)
}

// isUnknownID matches the 400/500 responses some proxy versions return for a
// lookup of an id that was never registered.
func isUnknownID(status int, body string) bool {
	return status >= 400 && strings.Contains(body, "unknown object ID")
}

func (c *Client) do(ctx context.Context, method, url string, payload any) (int, string, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, "", fmt.Errorf("marshal route: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, "", fmt.Errorf("%s %s request: %w", method, url, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("url", url).Msg("proxy admin request failed")
		return 0, "", fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, url, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	c.logger.Debug().Str("method", method).Str("url", url).Int("status", resp.StatusCode).
		Str("body", string(body)).Msg("proxy admin response")
	return resp.StatusCode, string(body), nil
}
