package dnsprovider

import (
	"context"
	"fmt"
	"net/url"
)

func (c *Client) subdomainPath(relative string) string {
	return fmt.Sprintf("/domains/%s/subdomains/%s", url.PathEscape(c.baseDomain), url.PathEscape(relative))
}

func recordsPath(fqdn string) string {
	return fmt.Sprintf("/domains/%s/dns-records", url.PathEscape(fqdn))
}

// CreateSubdomain creates the subdomain object for relative (e.g.
// "myshop.shops"). An existing object is fetched and reused.
func (c *Client) CreateSubdomain(ctx context.Context, relative string) (*Subdomain, error) {
	var sub Subdomain
	path := fmt.Sprintf("/domains/%s/subdomains", url.PathEscape(c.baseDomain))
	err := c.do(ctx, "POST", path, map[string]string{"name": relative}, &sub)
	if IsConflict(err) {
		return c.GetSubdomain(ctx, relative)
	}
	if err != nil {
		return nil, fmt.Errorf("create subdomain %s: %w", relative, err)
	}
	return &sub, nil
}

// GetSubdomain fetches the subdomain object. A missing object returns an
// error satisfying IsNotFound.
func (c *Client) GetSubdomain(ctx context.Context, relative string) (*Subdomain, error) {
	var sub Subdomain
	if err := c.do(ctx, "GET", c.subdomainPath(relative), nil, &sub); err != nil {
		return nil, fmt.Errorf("get subdomain %s: %w", relative, err)
	}
	return &sub, nil
}

// DeleteSubdomain removes the subdomain object. Already gone is success.
func (c *Client) DeleteSubdomain(ctx context.Context, relative string) error {
	err := c.do(ctx, "DELETE", c.subdomainPath(relative), nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete subdomain %s: %w", relative, err)
	}
	return nil
}

// ListRecords returns the DNS records under fqdn.
func (c *Client) ListRecords(ctx context.Context, fqdn string) ([]Record, error) {
	var records []Record
	err := c.do(ctx, "GET", recordsPath(fqdn), nil, &records)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", fqdn, err)
	}
	return records, nil
}

// CreateRecord adds a record under fqdn.
func (c *Client) CreateRecord(ctx context.Context, fqdn string, rec Record) (*Record, error) {
	var created Record
	if err := c.do(ctx, "POST", recordsPath(fqdn), rec, &created); err != nil {
		return nil, fmt.Errorf("create %s record for %s: %w", rec.Type, fqdn, err)
	}
	return &created, nil
}

// DeleteRecord removes one record. Already gone is success.
func (c *Client) DeleteRecord(ctx context.Context, fqdn, id string) error {
	err := c.do(ctx, "DELETE", recordsPath(fqdn)+"/"+url.PathEscape(id), nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete record %s for %s: %w", id, fqdn, err)
	}
	return nil
}
