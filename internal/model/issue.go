package model

import "time"

// Issue codes recorded on domains as errors or warnings.
const (
	IssueCNAMEWrongTarget   = "CNAME_WRONG_TARGET"
	IssueARecordWrongIP     = "A_RECORD_WRONG_IP"
	IssueNoDNSRecords       = "NO_DNS_RECORDS"
	IssueDNSLookupFailed    = "DNS_LOOKUP_FAILED"
	IssueDNSCheckBackoff    = "DNS_CHECK_BACKOFF"
	IssueARecordExtraIPs    = "A_RECORD_EXTRA_IPS"
	IssueTXTNotFound        = "TXT_RECORD_NOT_FOUND"
	IssueTXTMismatch        = "TXT_RECORD_MISMATCH"
	IssueTXTLookupFailed    = "TXT_LOOKUP_FAILED"
	IssueHTTPFileNotFound   = "HTTP_FILE_NOT_FOUND"
	IssueHTTPFileMismatch   = "HTTP_FILE_MISMATCH"
	IssueHTTPFileFetch      = "HTTP_FILE_FETCH_FAILED"
	IssueRouteAddFailed     = "ROUTE_ADD_FAILED"
	IssueSSLPending         = "SSL_PENDING"
	IssueSSLUnreachable     = "SSL_UNREACHABLE"
	IssueSSLExpiringSoon    = "SSL_EXPIRING_SOON"
	IssueSSLExpired         = "SSL_EXPIRED"
	IssueHealthCheckFailing = "HEALTH_CHECK_FAILING"
	IssueSuspended          = "DOMAIN_SUSPENDED"
)

// Issue severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// MaxIssues bounds the error and warning lists kept per domain.
const MaxIssues = 20

// Issue is one unresolved error or active warning attached to a domain.
type Issue struct {
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Severity string    `json:"severity,omitempty"`
	At       time.Time `json:"at"`
}

// UpsertIssue replaces the issue with the same code or appends a new one,
// dropping the oldest entries beyond MaxIssues.
func UpsertIssue(issues []Issue, issue Issue) []Issue {
	for i := range issues {
		if issues[i].Code == issue.Code {
			issues[i] = issue
			return issues
		}
	}
	issues = append(issues, issue)
	if len(issues) > MaxIssues {
		issues = issues[len(issues)-MaxIssues:]
	}
	return issues
}

// RemoveIssues drops every issue whose code is in codes.
func RemoveIssues(issues []Issue, codes ...string) []Issue {
	if len(issues) == 0 {
		return issues
	}
	drop := make(map[string]bool, len(codes))
	for _, c := range codes {
		drop[c] = true
	}
	kept := issues[:0]
	for _, is := range issues {
		if !drop[is.Code] {
			kept = append(kept, is)
		}
	}
	return kept
}

// HasIssue reports whether an issue with the given code is present.
func HasIssue(issues []Issue, code string) bool {
	for _, is := range issues {
		if is.Code == code {
			return true
		}
	}
	return false
}
