package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/domains/internal/model"
)

const subdomainColumns = `id, owner_id, namespace, slug, fqdn, status, url, error,
	activated_at, version, created_at, updated_at`

type SubdomainStore struct {
	db DB
}

func NewSubdomainStore(db DB) *SubdomainStore {
	return &SubdomainStore{db: db}
}

// Create inserts a subdomain. Slugs are unique per namespace and an owner
// holds at most one subdomain per namespace.
func (s *SubdomainStore) Create(ctx context.Context, sub *model.PlatformSubdomain) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO platform_subdomains (`+subdomainColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sub.ID, sub.OwnerID, sub.Namespace, sub.Slug, sub.FQDN, sub.Status, sub.URL, sub.Error,
		sub.ActivatedAt, sub.Version, sub.CreatedAt, sub.UpdatedAt,
	)
	if pgErr, ok := uniqueViolation(err); ok {
		if pgErr.ConstraintName == "platform_subdomains_namespace_owner_id_key" {
			return fmt.Errorf("insert subdomain for %s/%s: %w", sub.Namespace, sub.OwnerID, ErrAlreadyAssigned)
		}
		return fmt.Errorf("insert subdomain %s: %w", sub.FQDN, ErrSlugTaken)
	}
	if err != nil {
		return fmt.Errorf("insert subdomain %s: %w", sub.FQDN, err)
	}
	return nil
}

// GetByOwner returns the subdomain an owner holds in a namespace.
func (s *SubdomainStore) GetByOwner(ctx context.Context, ns model.Namespace, ownerID string) (*model.PlatformSubdomain, error) {
	sub, err := scanSubdomain(s.db.QueryRow(ctx,
		`SELECT `+subdomainColumns+` FROM platform_subdomains WHERE namespace = $1 AND owner_id = $2`,
		ns, ownerID))
	if err != nil {
		return nil, fmt.Errorf("get subdomain for %s/%s: %w", ns, ownerID, err)
	}
	return sub, nil
}

// GetBySlug returns the subdomain holding slug in a namespace.
func (s *SubdomainStore) GetBySlug(ctx context.Context, ns model.Namespace, slug string) (*model.PlatformSubdomain, error) {
	sub, err := scanSubdomain(s.db.QueryRow(ctx,
		`SELECT `+subdomainColumns+` FROM platform_subdomains WHERE namespace = $1 AND slug = $2`,
		ns, slug))
	if err != nil {
		return nil, fmt.Errorf("get subdomain %s in %s: %w", slug, ns, err)
	}
	return sub, nil
}

// ListByStatus returns every subdomain in one of the given states.
func (s *SubdomainStore) ListByStatus(ctx context.Context, statuses ...model.SubdomainStatus) ([]model.PlatformSubdomain, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+subdomainColumns+` FROM platform_subdomains WHERE status = ANY($1) ORDER BY id`, names)
	if err != nil {
		return nil, fmt.Errorf("list subdomains: %w", err)
	}
	defer rows.Close()

	var subs []model.PlatformSubdomain
	for rows.Next() {
		sub, err := scanSubdomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subdomain: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subdomains: %w", err)
	}
	return subs, nil
}

// Update writes sub if the stored version still equals sub.Version.
func (s *SubdomainStore) Update(ctx context.Context, sub *model.PlatformSubdomain) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE platform_subdomains SET
			status = $3, url = $4, error = $5, activated_at = $6,
			updated_at = $7, version = version + 1
		 WHERE id = $1 AND version = $2`,
		sub.ID, sub.Version, sub.Status, sub.URL, sub.Error, sub.ActivatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subdomain %s: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update subdomain %s at version %d: %w", sub.ID, sub.Version, ErrStaleRecord)
	}
	sub.Version++
	return nil
}

func (s *SubdomainStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM platform_subdomains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subdomain %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete subdomain %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanSubdomain(row pgx.Row) (*model.PlatformSubdomain, error) {
	var sub model.PlatformSubdomain
	err := row.Scan(&sub.ID, &sub.OwnerID, &sub.Namespace, &sub.Slug, &sub.FQDN, &sub.Status,
		&sub.URL, &sub.Error, &sub.ActivatedAt, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
