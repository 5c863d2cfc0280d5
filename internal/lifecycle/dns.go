package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/edvin/domains/internal/model"
)

// DNSIssueCodes are the error codes a routing check can record. A passing
// check clears all of them.
var DNSIssueCodes = []string{
	model.IssueCNAMEWrongTarget,
	model.IssueARecordWrongIP,
	model.IssueNoDNSRecords,
	model.IssueDNSLookupFailed,
}

// OwnershipIssueCodes are the error codes an ownership check can record.
var OwnershipIssueCodes = []string{
	model.IssueTXTNotFound,
	model.IssueTXTMismatch,
	model.IssueTXTLookupFailed,
	model.IssueHTTPFileNotFound,
	model.IssueHTTPFileMismatch,
	model.IssueHTTPFileFetch,
}

// DNSResult is the outcome of one routing check.
type DNSResult struct {
	OK         bool
	RecordType string
	Values     []string
	ErrorCode  string
	Error      string
	// ExtraIPs lists A record values that are not platform IPs.
	ExtraIPs []string
}

// Check converts the result into the telemetry stored on a domain.
func (r DNSResult) Check(now time.Time) *model.DNSCheck {
	return &model.DNSCheck{
		CheckedAt:  now,
		Success:    r.OK,
		RecordType: r.RecordType,
		Values:     r.Values,
		ErrorCode:  r.ErrorCode,
		Error:      r.Error,
	}
}

// DNSValidator checks that a hostname routes to the platform: a CNAME to
// the proxy target, or, when no CNAME exists, A records at platform IPs.
type DNSValidator struct {
	resolver    Resolver
	cnameTarget string
	platformIPs []string
}

func NewDNSValidator(resolver Resolver, cnameTarget string, platformIPs []string) *DNSValidator {
	return &DNSValidator{
		resolver:    resolver,
		cnameTarget: normalizeName(cnameTarget),
		platformIPs: platformIPs,
	}
}

func normalizeName(s string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
}

// Validate runs the routing check for host.
func (v *DNSValidator) Validate(ctx context.Context, host string) DNSResult {
	cname, err := v.resolver.ResolveCNAME(ctx, host)
	if err != nil {
		return lookupFailed("CNAME", err)
	}
	if cname.Found() {
		got := normalizeName(cname.Values[0])
		if got == v.cnameTarget {
			return DNSResult{OK: true, RecordType: "CNAME", Values: cname.Values}
		}
		return DNSResult{
			RecordType: "CNAME",
			Values:     cname.Values,
			ErrorCode:  model.IssueCNAMEWrongTarget,
			Error:      fmt.Sprintf("CNAME points to %s, expected %s", got, v.cnameTarget),
		}
	}

	a, err := v.resolver.ResolveA(ctx, host)
	if err != nil {
		return lookupFailed("A", err)
	}
	if !a.Found() {
		return DNSResult{
			ErrorCode: model.IssueNoDNSRecords,
			Error:     fmt.Sprintf("no CNAME or A record found for %s", host),
		}
	}

	// One platform IP is enough; the rest are reported as extras.
	var matched bool
	var extra []string
	for _, ip := range a.Values {
		if slices.Contains(v.platformIPs, ip) {
			matched = true
		} else {
			extra = append(extra, ip)
		}
	}
	if !matched {
		return DNSResult{
			RecordType: "A",
			Values:     a.Values,
			ErrorCode:  model.IssueARecordWrongIP,
			Error:      fmt.Sprintf("A records %s do not include a platform IP (%s)", strings.Join(a.Values, ", "), strings.Join(v.platformIPs, ", ")),
		}
	}
	return DNSResult{OK: true, RecordType: "A", Values: a.Values, ExtraIPs: extra}
}

func lookupFailed(recordType string, err error) DNSResult {
	return DNSResult{
		RecordType: recordType,
		ErrorCode:  model.IssueDNSLookupFailed,
		Error:      err.Error(),
	}
}

// ApplyDNSResult records a routing check on d: telemetry, errors and the
// extra-IP warning. It does not change the status.
func ApplyDNSResult(d *model.CustomDomain, res DNSResult, now time.Time) {
	d.LastDNSCheck = res.Check(now)
	d.Errors = model.RemoveIssues(d.Errors, DNSIssueCodes...)
	if !res.OK {
		d.AddError(res.ErrorCode, res.Error, now)
		return
	}
	if len(res.ExtraIPs) > 0 {
		d.AddWarning(model.IssueARecordExtraIPs, model.SeverityWarning,
			fmt.Sprintf("remove A records %s; they do not point at the platform", strings.Join(res.ExtraIPs, ", ")), now)
	} else {
		d.Warnings = model.RemoveIssues(d.Warnings, model.IssueARecordExtraIPs)
	}
}
