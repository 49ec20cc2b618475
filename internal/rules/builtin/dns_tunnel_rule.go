package builtin

import (
	"fmt"

	"netsentry/internal/model"
)

// DNSTunnelCheck flags DNS queries with abnormally long question names,
// the classic signature of data smuggled through resolver traffic.
type DNSTunnelCheck struct {
	maxQueryLength int
}

// NewDNSTunnelCheck builds the check; a limit of zero or less selects the
// default of 100 characters. The comparison is strict, a name of exactly
// the limit does not fire.
func NewDNSTunnelCheck(maxQueryLength int) *DNSTunnelCheck {
	if maxQueryLength <= 0 {
		maxQueryLength = 100
	}
	return &DNSTunnelCheck{maxQueryLength: maxQueryLength}
}

func (c *DNSTunnelCheck) Name() string { return "dns_tunneling" }

func (c *DNSTunnelCheck) Inspect(pkt *model.PacketView) []model.Alert {
	qname := pkt.DNSQName
	if qname == "" || len(qname) <= c.maxQueryLength {
		return nil
	}

	sample := qname
	if len(sample) > 50 {
		sample = sample[:50]
	}

	return []model.Alert{{
		Message:  fmt.Sprintf("DNS tunneling suspected from %s - long query: %s...", pkt.SrcIP, sample),
		Category: model.CategoryExfiltration,
		SrcIP:    pkt.SrcIP,
		Severity: model.SeverityMedium,
		Meta: map[string]any{
			"query_length": len(qname),
			"query_sample": sample,
			"attack_type":  "DNS Tunneling",
			"severity":     model.SeverityMedium,
		},
		Timestamp: pkt.Timestamp,
	}}
}
