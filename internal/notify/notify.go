// Package notify delivers operator and tenant notifications about custom
// domains: certificates nearing expiry and suspensions.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Event kinds.
const (
	EventSSLExpiring = "ssl_expiring"
	EventSSLExpired  = "ssl_expired"
	EventSuspended   = "domain_suspended"
)

// Event describes something a tenant or operator should hear about.
type Event struct {
	Kind      string     `json:"kind"`
	Severity  string     `json:"severity"`
	DomainID  string     `json:"domain_id"`
	TenantID  string     `json:"tenant_id"`
	Hostname  string     `json:"hostname"`
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	At        time.Time  `json:"at"`
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the log.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.logger.Warn().
		Str("kind", ev.Kind).
		Str("severity", ev.Severity).
		Str("domain_id", ev.DomainID).
		Str("tenant_id", ev.TenantID).
		Str("hostname", ev.Hostname).
		Msg(ev.Message)
	return nil
}

// Multi fans an event out to several notifiers and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
