package dnsprovider

import (
	"context"
	"fmt"

	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/platform"
)

const aRecordTTL = 300

// FQDN returns the hostname a slug gets in a namespace.
func (c *Client) FQDN(slug string, ns model.Namespace) string {
	return platform.SubdomainFQDN(slug, ns.Label(), c.baseDomain)
}

// RegisterSubdomain creates the subdomain object and its A record. If the
// record cannot be created the subdomain object is deleted again before the
// error is returned.
func (c *Client) RegisterSubdomain(ctx context.Context, slug string, ns model.Namespace) (string, error) {
	relative := platform.SubdomainRelative(slug, ns.Label())
	fqdn := c.FQDN(slug, ns)

	if _, err := c.CreateSubdomain(ctx, relative); err != nil {
		return "", err
	}

	if err := c.ensureARecord(ctx, fqdn); err != nil {
		if rbErr := c.DeleteSubdomain(ctx, relative); rbErr != nil {
			c.logger.Error().Err(rbErr).Str("fqdn", fqdn).Msg("rollback of subdomain object failed")
			return "", fmt.Errorf("register %s: %w (rollback failed: %v)", fqdn, err, rbErr)
		}
		c.logger.Warn().Err(err).Str("fqdn", fqdn).Msg("subdomain registration rolled back")
		return "", fmt.Errorf("register %s: %w", fqdn, err)
	}

	c.logger.Info().Str("fqdn", fqdn).Msg("subdomain registered")
	return fqdn, nil
}

func (c *Client) ensureARecord(ctx context.Context, fqdn string) error {
	records, err := c.ListRecords(ctx, fqdn)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.Type == "A" && r.Value == c.publicIP {
			return nil
		}
	}
	_, err = c.CreateRecord(ctx, fqdn, Record{Type: "A", Value: c.publicIP, TTL: aRecordTTL})
	return err
}

// UnregisterSubdomain deletes every record under the subdomain and then the
// subdomain object itself.
func (c *Client) UnregisterSubdomain(ctx context.Context, slug string, ns model.Namespace) error {
	relative := platform.SubdomainRelative(slug, ns.Label())
	fqdn := c.FQDN(slug, ns)

	records, err := c.ListRecords(ctx, fqdn)
	if err != nil {
		return fmt.Errorf("unregister %s: %w", fqdn, err)
	}
	for _, r := range records {
		if err := c.DeleteRecord(ctx, fqdn, r.ID); err != nil {
			return fmt.Errorf("unregister %s: %w", fqdn, err)
		}
	}
	if err := c.DeleteSubdomain(ctx, relative); err != nil {
		return fmt.Errorf("unregister %s: %w", fqdn, err)
	}

	c.logger.Info().Str("fqdn", fqdn).Msg("subdomain unregistered")
	return nil
}

// SubdomainExists reports whether the subdomain object is present.
func (c *Client) SubdomainExists(ctx context.Context, slug string, ns model.Namespace) (bool, error) {
	_, err := c.GetSubdomain(ctx, platform.SubdomainRelative(slug, ns.Label()))
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
