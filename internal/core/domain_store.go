package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/domains/internal/model"
)

const domainColumns = `id, tenant_id, hostname, target_type, target_id,
	verification_token, verification_method, verified, verified_at,
	status, status_changed_at, errors, warnings,
	last_dns_check, consecutive_failures, dns_check_attempts, next_check_at,
	ssl_issued_at, ssl_expires_at, ssl_issuer, last_ssl_check, ssl_notified_band,
	suspended_reason, suspended_at, version, created_at, updated_at`

type DomainStore struct {
	db DB
}

func NewDomainStore(db DB) *DomainStore {
	return &DomainStore{db: db}
}

// Create inserts a new domain. Hostnames are unique across all tenants.
func (s *DomainStore) Create(ctx context.Context, d *model.CustomDomain) error {
	enc, err := encodeDomainJSON(d)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO custom_domains (`+domainColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		         $19, $20, $21, $22, $23, $24, $25, $26, $27)`,
		d.ID, d.TenantID, d.Hostname, string(d.Target.Type()), d.Target.ID(),
		d.VerificationToken, d.VerificationMethod, d.Verified, d.VerifiedAt,
		d.Status, d.StatusChangedAt, enc.errors, enc.warnings,
		enc.lastDNSCheck, d.ConsecutiveFailures, d.DNSCheckAttempts, d.NextCheckAt,
		d.SSLIssuedAt, d.SSLExpiresAt, d.SSLIssuer, enc.lastSSLCheck, d.SSLNotifiedBand,
		d.SuspendedReason, d.SuspendedAt, d.Version, d.CreatedAt, d.UpdatedAt,
	)
	if _, ok := uniqueViolation(err); ok {
		return fmt.Errorf("insert domain %s: %w", d.Hostname, ErrHostnameTaken)
	}
	if err != nil {
		return fmt.Errorf("insert domain %s: %w", d.Hostname, err)
	}
	return nil
}

func (s *DomainStore) Get(ctx context.Context, id string) (*model.CustomDomain, error) {
	d, err := scanDomain(s.db.QueryRow(ctx,
		`SELECT `+domainColumns+` FROM custom_domains WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get domain %s: %w", id, err)
	}
	return d, nil
}

// GetByHostname looks a domain up case-insensitively.
func (s *DomainStore) GetByHostname(ctx context.Context, hostname string) (*model.CustomDomain, error) {
	d, err := scanDomain(s.db.QueryRow(ctx,
		`SELECT `+domainColumns+` FROM custom_domains WHERE hostname = lower($1)`, hostname))
	if err != nil {
		return nil, fmt.Errorf("get domain by hostname %s: %w", hostname, err)
	}
	return d, nil
}

func (s *DomainStore) ListByTenant(ctx context.Context, tenantID string) ([]model.CustomDomain, error) {
	return s.list(ctx, "tenant "+tenantID,
		`SELECT `+domainColumns+` FROM custom_domains WHERE tenant_id = $1 ORDER BY hostname`, tenantID)
}

// ListByStatus returns every domain in one of the given states.
func (s *DomainStore) ListByStatus(ctx context.Context, statuses ...model.DomainStatus) ([]model.CustomDomain, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return s.list(ctx, "status "+strings.Join(names, ","),
		`SELECT `+domainColumns+` FROM custom_domains WHERE status = ANY($1) ORDER BY id`, names)
}

func (s *DomainStore) list(ctx context.Context, what, sql string, args ...any) ([]model.CustomDomain, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list domains for %s: %w", what, err)
	}
	defer rows.Close()

	var domains []model.CustomDomain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return domains, nil
}

// Update writes d if the stored version still equals d.Version and bumps
// d.Version on success. A lost race returns ErrStaleRecord.
func (s *DomainStore) Update(ctx context.Context, d *model.CustomDomain) error {
	enc, err := encodeDomainJSON(d)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE custom_domains SET
			target_type = $3, target_id = $4,
			verification_method = $5, verified = $6, verified_at = $7,
			status = $8, status_changed_at = $9, errors = $10, warnings = $11,
			last_dns_check = $12, consecutive_failures = $13, dns_check_attempts = $14, next_check_at = $15,
			ssl_issued_at = $16, ssl_expires_at = $17, ssl_issuer = $18, last_ssl_check = $19,
			ssl_notified_band = $20, suspended_reason = $21, suspended_at = $22,
			updated_at = $23, version = version + 1
		 WHERE id = $1 AND version = $2`,
		d.ID, d.Version, string(d.Target.Type()), d.Target.ID(),
		d.VerificationMethod, d.Verified, d.VerifiedAt,
		d.Status, d.StatusChangedAt, enc.errors, enc.warnings,
		enc.lastDNSCheck, d.ConsecutiveFailures, d.DNSCheckAttempts, d.NextCheckAt,
		d.SSLIssuedAt, d.SSLExpiresAt, d.SSLIssuer, enc.lastSSLCheck,
		d.SSLNotifiedBand, d.SuspendedReason, d.SuspendedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update domain %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update domain %s at version %d: %w", d.ID, d.Version, ErrStaleRecord)
	}
	d.Version++
	return nil
}

func (s *DomainStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM custom_domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete domain %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete domain %s: %w", id, ErrNotFound)
	}
	return nil
}

type domainJSON struct {
	errors, warnings, lastDNSCheck, lastSSLCheck []byte
}

func encodeDomainJSON(d *model.CustomDomain) (domainJSON, error) {
	var enc domainJSON
	var err error
	if enc.errors, err = json.Marshal(nonNilIssues(d.Errors)); err != nil {
		return enc, fmt.Errorf("marshal errors: %w", err)
	}
	if enc.warnings, err = json.Marshal(nonNilIssues(d.Warnings)); err != nil {
		return enc, fmt.Errorf("marshal warnings: %w", err)
	}
	if d.LastDNSCheck != nil {
		if enc.lastDNSCheck, err = json.Marshal(d.LastDNSCheck); err != nil {
			return enc, fmt.Errorf("marshal last dns check: %w", err)
		}
	}
	if d.LastSSLCheck != nil {
		if enc.lastSSLCheck, err = json.Marshal(d.LastSSLCheck); err != nil {
			return enc, fmt.Errorf("marshal last ssl check: %w", err)
		}
	}
	return enc, nil
}

func nonNilIssues(issues []model.Issue) []model.Issue {
	if issues == nil {
		return []model.Issue{}
	}
	return issues
}

func scanDomain(row pgx.Row) (*model.CustomDomain, error) {
	var (
		d                    model.CustomDomain
		targetType, targetID string
		errs, warns          []byte
		lastDNS, lastSSL     []byte
	)
	err := row.Scan(&d.ID, &d.TenantID, &d.Hostname, &targetType, &targetID,
		&d.VerificationToken, &d.VerificationMethod, &d.Verified, &d.VerifiedAt,
		&d.Status, &d.StatusChangedAt, &errs, &warns,
		&lastDNS, &d.ConsecutiveFailures, &d.DNSCheckAttempts, &d.NextCheckAt,
		&d.SSLIssuedAt, &d.SSLExpiresAt, &d.SSLIssuer, &lastSSL, &d.SSLNotifiedBand,
		&d.SuspendedReason, &d.SuspendedAt, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if d.Target, err = model.ParseTarget(targetType, targetID); err != nil {
		return nil, err
	}
	if err := unmarshalIfSet(errs, &d.Errors); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}
	if err := unmarshalIfSet(warns, &d.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	if len(lastDNS) > 0 {
		d.LastDNSCheck = &model.DNSCheck{}
		if err := json.Unmarshal(lastDNS, d.LastDNSCheck); err != nil {
			return nil, fmt.Errorf("decode last dns check: %w", err)
		}
	}
	if len(lastSSL) > 0 {
		d.LastSSLCheck = &model.SSLCheck{}
		if err := json.Unmarshal(lastSSL, d.LastSSLCheck); err != nil {
			return nil, fmt.Errorf("decode last ssl check: %w", err)
		}
	}
	return &d, nil
}

func unmarshalIfSet(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
