package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	domainTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domains_status_transitions_total",
		Help: "Custom domain status transitions",
	}, []string{"from", "to"})

	externalChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domains_checks_total",
		Help: "DNS, ownership and TLS checks run by the lifecycle manager",
	}, []string{"kind", "result"})

	subdomainTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domains_subdomain_transitions_total",
		Help: "Platform subdomain status transitions",
	}, []string{"from", "to"})
)

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
