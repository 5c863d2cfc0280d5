package reconciler

import (
	"fmt"
	"time"

	"github.com/edvin/domains/internal/dnsclient"
	"github.com/edvin/domains/internal/lifecycle"
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/notify"
)

// Band is how close a domain's certificate is to expiry.
type Band string

const (
	BandOK       Band = ""
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
	BandExpired  Band = "expired"
)

// Expiry thresholds in whole days left.
const (
	WarningDays  = 30
	CriticalDays = 14
)

func (b Band) rank() int {
	switch b {
	case BandWarning:
		return 1
	case BandCritical:
		return 2
	case BandExpired:
		return 3
	}
	return 0
}

// Classify puts a certificate into its expiry band.
func Classify(cert *dnsclient.CertInfo, now time.Time) Band {
	if !now.Before(cert.NotAfter) {
		return BandExpired
	}
	switch days := cert.DaysLeft(now); {
	case days < CriticalDays:
		return BandCritical
	case days <= WarningDays:
		return BandWarning
	}
	return BandOK
}

// applyCertificate records the probe result on d and moves its status to
// match the expiry band. It returns the notification to send, or nil when
// the band did not escalate beyond what was already reported. On
// escalation the notified band is left unchanged; the caller marks it once
// the notification is delivered.
func applyCertificate(d *model.CustomDomain, cert *dnsclient.CertInfo, now time.Time) (*notify.Event, Band) {
	if cert == nil || !lifecycle.CoversHost(cert, d.Hostname) {
		msg := "no certificate is served for " + d.Hostname
		if cert != nil {
			msg = fmt.Sprintf("the certificate served for %s does not cover it (%s)", d.Hostname, cert.Subject)
		}
		d.LastSSLCheck = &model.SSLCheck{CheckedAt: now, Error: msg}
		d.AddWarning(model.IssueSSLUnreachable, model.SeverityWarning, msg, now)
		return nil, Band(d.SSLNotifiedBand)
	}

	lifecycle.RecordCertificate(d, cert, now)
	d.Warnings = model.RemoveIssues(d.Warnings, model.IssueSSLUnreachable, model.IssueSSLPending)

	band := Classify(cert, now)
	days := cert.DaysLeft(now)
	switch band {
	case BandOK:
		d.Warnings = model.RemoveIssues(d.Warnings, model.IssueSSLExpiringSoon)
		d.Errors = model.RemoveIssues(d.Errors, model.IssueSSLExpired)
		d.SetStatus(model.DomainActive, now)
	case BandWarning:
		d.Errors = model.RemoveIssues(d.Errors, model.IssueSSLExpired)
		d.AddWarning(model.IssueSSLExpiringSoon, model.SeverityWarning,
			fmt.Sprintf("certificate expires in %d days", days), now)
		d.SetStatus(model.DomainActive, now)
	case BandCritical:
		d.Errors = model.RemoveIssues(d.Errors, model.IssueSSLExpired)
		d.AddWarning(model.IssueSSLExpiringSoon, model.SeverityCritical,
			fmt.Sprintf("certificate expires in %d days", days), now)
		d.SetStatus(model.DomainSSLExpiring, now)
	case BandExpired:
		d.Warnings = model.RemoveIssues(d.Warnings, model.IssueSSLExpiringSoon)
		d.AddError(model.IssueSSLExpired,
			"certificate expired at "+cert.NotAfter.UTC().Format(time.RFC3339), now)
		d.SetStatus(model.DomainSSLError, now)
	}

	if band.rank() <= Band(d.SSLNotifiedBand).rank() {
		d.SSLNotifiedBand = string(band)
		return nil, band
	}

	expires := cert.NotAfter
	ev := &notify.Event{
		Kind:      notify.EventSSLExpiring,
		Severity:  model.SeverityWarning,
		DomainID:  d.ID,
		TenantID:  d.TenantID,
		Hostname:  d.Hostname,
		Message:   fmt.Sprintf("the certificate for %s expires in %d days", d.Hostname, days),
		ExpiresAt: &expires,
		At:        now,
	}
	switch band {
	case BandCritical:
		ev.Severity = model.SeverityCritical
	case BandExpired:
		ev.Kind = notify.EventSSLExpired
		ev.Severity = model.SeverityCritical
		ev.Message = fmt.Sprintf("the certificate for %s has expired", d.Hostname)
	}
	return ev, band
}
