package lifecycle

import "time"

// Policy holds the routing targets and timing rules the managers enforce.
type Policy struct {
	PlatformName string
	CNAMETarget  string
	PlatformIPs  []string
	BaseDomain   string

	CheckInterval    time.Duration
	BackoffInterval  time.Duration
	FailureThreshold int

	SSLWaitTimeout  time.Duration
	SSLWaitInterval time.Duration

	// StaleAfter is how long a domain may sit in a transient state before
	// the reconciler assumes the worker that claimed it died.
	StaleAfter time.Duration
}

// DefaultPolicy returns the production timings with empty routing targets.
func DefaultPolicy() Policy {
	return Policy{
		PlatformName:     "platform",
		CheckInterval:    5 * time.Minute,
		BackoffInterval:  30 * time.Minute,
		FailureThreshold: 3,
		SSLWaitTimeout:   60 * time.Second,
		SSLWaitInterval:  5 * time.Second,
		StaleAfter:       10 * time.Minute,
	}
}

// nextInterval is the wait before another check after failures
// consecutive failed attempts.
func (p Policy) nextInterval(failures int) time.Duration {
	if failures >= p.FailureThreshold {
		return p.BackoffInterval
	}
	return p.CheckInterval
}
