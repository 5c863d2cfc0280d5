package dnsprovider

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/edvin/domains/internal/model"
)

// ErrAppNotFound is returned when no provider app has the requested name.
var ErrAppNotFound = errors.New("provider app not found")

// FindApp looks up a provider app by name.
func (c *Client) FindApp(ctx context.Context, name string) (*App, error) {
	var apps []App
	if err := c.do(ctx, "GET", "/apps?name="+url.QueryEscape(name), nil, &apps); err != nil {
		return nil, fmt.Errorf("find app %s: %w", name, err)
	}
	for i := range apps {
		if apps[i].Name == name {
			return &apps[i], nil
		}
	}
	return nil, fmt.Errorf("find app %s: %w", name, ErrAppNotFound)
}

func appDomainPath(appID, domain string) string {
	return fmt.Sprintf("/apps/%s/domains/%s", url.PathEscape(appID), url.PathEscape(domain))
}

// AttachDomain attaches domain to the app. An already attached domain is
// success.
func (c *Client) AttachDomain(ctx context.Context, appID, domain string) error {
	path := fmt.Sprintf("/apps/%s/domains", url.PathEscape(appID))
	err := c.do(ctx, "POST", path, AppDomain{Domain: domain}, nil)
	if err != nil && !IsConflict(err) {
		return fmt.Errorf("attach %s to app %s: %w", domain, appID, err)
	}
	return nil
}

// DetachDomain removes domain from the app. Already gone is success.
func (c *Client) DetachDomain(ctx context.Context, appID, domain string) error {
	err := c.do(ctx, "DELETE", appDomainPath(appID, domain), nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("detach %s from app %s: %w", domain, appID, err)
	}
	return nil
}

// DomainAttached reports whether domain is attached to the app.
func (c *Client) DomainAttached(ctx context.Context, appID, domain string) (bool, error) {
	err := c.do(ctx, "GET", appDomainPath(appID, domain), nil, nil)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s on app %s: %w", domain, appID, err)
	}
	return true, nil
}

// AppDomains provisions platform subdomains by attaching them to a provider
// app instead of creating DNS objects. It has the same method set as the
// DNS saga on Client.
type AppDomains struct {
	client *Client
	cache  *AppLookupCache
}

func NewAppDomains(client *Client, cache *AppLookupCache) *AppDomains {
	return &AppDomains{client: client, cache: cache}
}

func (a *AppDomains) RegisterSubdomain(ctx context.Context, slug string, ns model.Namespace) (string, error) {
	fqdn := a.client.FQDN(slug, ns)
	app, err := a.cache.Get(ctx)
	if err != nil {
		return "", err
	}
	if err := a.client.AttachDomain(ctx, app.ID, fqdn); err != nil {
		if IsNotFound(err) {
			a.cache.Invalidate()
		}
		return "", err
	}
	return fqdn, nil
}

func (a *AppDomains) UnregisterSubdomain(ctx context.Context, slug string, ns model.Namespace) error {
	app, err := a.cache.Get(ctx)
	if err != nil {
		return err
	}
	return a.client.DetachDomain(ctx, app.ID, a.client.FQDN(slug, ns))
}

func (a *AppDomains) SubdomainExists(ctx context.Context, slug string, ns model.Namespace) (bool, error) {
	app, err := a.cache.Get(ctx)
	if err != nil {
		return false, err
	}
	return a.client.DomainAttached(ctx, app.ID, a.client.FQDN(slug, ns))
}
