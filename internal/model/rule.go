package model

// SignatureRule is a declarative predicate over a PacketView with an
// attached alert template. Rules are loaded once at startup from a JSON
// document; missing fields are wildcards, so a rule with no predicates
// matches every packet.
type SignatureRule struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`

	// Optional predicates. The pointer field distinguishes "absent" from
	// the zero value.
	Protocol string  `json:"protocol,omitempty"`
	DstPort  *uint16 `json:"dst_port,omitempty"`
	SrcIP    string  `json:"src_ip,omitempty"`

	// Flags matches when every letter of the pattern is set on a TCP
	// packet. Ignored for non-TCP traffic.
	Flags string `json:"flags,omitempty"`

	// Content is a case-insensitive substring match against the TCP
	// payload. A rule carrying Content never matches an empty payload.
	Content string `json:"content,omitempty"`
}

// SignatureRuleSet is the on-disk document shape of signature_rules.json.
type SignatureRuleSet struct {
	Rules []SignatureRule `json:"rules"`
}
