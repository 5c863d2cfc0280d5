package model

import (
	"fmt"
	"time"
)

// Namespace groups platform subdomains by the kind of resource that owns them.
type Namespace string

const (
	NamespaceShop    Namespace = "shop"
	NamespaceBooking Namespace = "booking"
	NamespacePage    Namespace = "page"
)

// ParseNamespace validates a namespace name.
func ParseNamespace(s string) (Namespace, error) {
	switch ns := Namespace(s); ns {
	case NamespaceShop, NamespaceBooking, NamespacePage:
		return ns, nil
	}
	return "", fmt.Errorf("unknown namespace %q", s)
}

// Label is the DNS label used for the namespace, e.g. "shops" in
// myshop.shops.example.com.
func (n Namespace) Label() string {
	return string(n) + "s"
}

// PlatformSubdomain is a platform-assigned hostname {slug}.{namespace}.{base}
// owned by a shop, booking site or page.
type PlatformSubdomain struct {
	ID          string          `json:"id" db:"id"`
	OwnerID     string          `json:"owner_id" db:"owner_id"`
	Namespace   Namespace       `json:"namespace" db:"namespace"`
	Slug        string          `json:"slug" db:"slug"`
	FQDN        string          `json:"fqdn" db:"fqdn"`
	Status      SubdomainStatus `json:"status" db:"status"`
	URL         *string         `json:"url,omitempty" db:"url"`
	Error       *string         `json:"error,omitempty" db:"error"`
	ActivatedAt *time.Time      `json:"activated_at,omitempty" db:"activated_at"`
	Version     int             `json:"-" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
