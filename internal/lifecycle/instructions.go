package lifecycle

import (
	"github.com/edvin/domains/internal/model"
	"github.com/edvin/domains/internal/platform"
)

// Instruction is one step a tenant performs at their DNS host or web server.
type Instruction struct {
	Purpose string `json:"purpose"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Value   string `json:"value"`
	TTL     int    `json:"ttl,omitempty"`
}

// Instruction purposes.
const (
	PurposeRouting           = "routing"
	PurposeOwnership         = "ownership"
	PurposeOwnershipFallback = "ownership_alternative"
)

// Instructions lists the records a tenant must create for d. Apex hosts
// cannot carry a CNAME and are pointed with A records instead.
func (p Policy) Instructions(d *model.CustomDomain) []Instruction {
	var out []Instruction
	if platform.IsApex(d.Hostname) {
		for _, ip := range p.PlatformIPs {
			out = append(out, Instruction{Purpose: PurposeRouting, Type: "A", Name: d.Hostname, Value: ip, TTL: 3600})
		}
	} else {
		out = append(out, Instruction{Purpose: PurposeRouting, Type: "CNAME", Name: d.Hostname, Value: p.CNAMETarget, TTL: 3600})
	}
	if d.Verified {
		return out
	}
	return append(out,
		Instruction{
			Purpose: PurposeOwnership,
			Type:    "TXT",
			Name:    platform.VerifyTXTName(p.PlatformName, d.Hostname),
			Value:   d.VerificationToken,
			TTL:     300,
		},
		Instruction{
			Purpose: PurposeOwnershipFallback,
			Type:    "HTTP",
			Name:    "https://" + d.Hostname + platform.VerifyFilePath(p.PlatformName),
			Value:   d.VerificationToken,
		},
	)
}
