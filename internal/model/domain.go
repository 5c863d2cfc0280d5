package model

import "time"

// Ownership proof methods.
const (
	VerifyMethodDNSTXT   = "dns_txt"
	VerifyMethodHTTPFile = "http_file"
)

// DNSCheck is the latest DNS validation outcome stored on a domain.
type DNSCheck struct {
	CheckedAt  time.Time `json:"checked_at"`
	Success    bool      `json:"success"`
	RecordType string    `json:"record_type,omitempty"`
	Values     []string  `json:"values,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// SSLCheck is the latest TLS probe outcome stored on a domain.
type SSLCheck struct {
	CheckedAt time.Time  `json:"checked_at"`
	Success   bool       `json:"success"`
	Issuer    string     `json:"issuer,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	NotBefore *time.Time `json:"not_before,omitempty"`
	NotAfter  *time.Time `json:"not_after,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// CustomDomain is a tenant-supplied hostname attached to a shop, booking
// site or page. Hostname is stored lower-cased and is globally unique.
type CustomDomain struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Hostname string `json:"hostname" db:"hostname"`
	Target   Target `json:"target"`

	VerificationToken  string     `json:"verification_token" db:"verification_token"`
	VerificationMethod *string    `json:"verification_method,omitempty" db:"verification_method"`
	Verified           bool       `json:"verified" db:"verified"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty" db:"verified_at"`

	Status          DomainStatus `json:"status" db:"status"`
	StatusChangedAt time.Time    `json:"status_changed_at" db:"status_changed_at"`
	Errors          []Issue      `json:"errors" db:"errors"`
	Warnings        []Issue      `json:"warnings" db:"warnings"`

	LastDNSCheck        *DNSCheck  `json:"last_dns_check,omitempty" db:"last_dns_check"`
	ConsecutiveFailures int        `json:"consecutive_failures" db:"consecutive_failures"`
	DNSCheckAttempts    int        `json:"dns_check_attempts" db:"dns_check_attempts"`
	NextCheckAt         *time.Time `json:"next_check_at,omitempty" db:"next_check_at"`

	SSLIssuedAt     *time.Time `json:"ssl_issued_at,omitempty" db:"ssl_issued_at"`
	SSLExpiresAt    *time.Time `json:"ssl_expires_at,omitempty" db:"ssl_expires_at"`
	SSLIssuer       *string    `json:"ssl_issuer,omitempty" db:"ssl_issuer"`
	LastSSLCheck    *SSLCheck  `json:"last_ssl_check,omitempty" db:"last_ssl_check"`
	SSLNotifiedBand string     `json:"-" db:"ssl_notified_band"`

	SuspendedReason *string    `json:"suspended_reason,omitempty" db:"suspended_reason"`
	SuspendedAt     *time.Time `json:"suspended_at,omitempty" db:"suspended_at"`

	Version   int       `json:"-" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SetStatus records a status change and its timestamp.
func (d *CustomDomain) SetStatus(s DomainStatus, now time.Time) {
	if d.Status != s {
		d.StatusChangedAt = now
	}
	d.Status = s
}

// AddError attaches or refreshes an unresolved error.
func (d *CustomDomain) AddError(code, message string, now time.Time) {
	d.Errors = UpsertIssue(d.Errors, Issue{Code: code, Message: message, Severity: SeverityCritical, At: now})
}

// AddWarning attaches or refreshes an active warning.
func (d *CustomDomain) AddWarning(code, severity, message string, now time.Time) {
	d.Warnings = UpsertIssue(d.Warnings, Issue{Code: code, Message: message, Severity: severity, At: now})
}

// Clone returns a deep copy so callers can mutate without aliasing a stored record.
func (d *CustomDomain) Clone() *CustomDomain {
	c := *d
	c.Errors = append([]Issue(nil), d.Errors...)
	c.Warnings = append([]Issue(nil), d.Warnings...)
	if d.LastDNSCheck != nil {
		dc := *d.LastDNSCheck
		dc.Values = append([]string(nil), d.LastDNSCheck.Values...)
		c.LastDNSCheck = &dc
	}
	if d.LastSSLCheck != nil {
		sc := *d.LastSSLCheck
		c.LastSSLCheck = &sc
	}
	return &c
}
