package builtin

import (
	"fmt"
	"regexp"

	"netsentry/internal/model"
)

// injectionPatterns are scanned case-insensitively over raw TCP payload
// bytes destined to a web port. Order matters: the first match wins and
// at most one alert fires per packet.
var injectionPatterns = []string{
	`union.*select`,
	`select.*from`,
	`insert.*into`,
	`drop.*table`,
	`1=1`,
	`or.*1=1`,
	`script>`,
	`<script`,
	`eval\(`,
	`base64_decode`,
	`cmd\.exe`,
	`bin/bash`,
	`etc/passwd`,
	`../..`,
	`\.\./`,
}

var webPorts = map[uint16]struct{}{80: {}, 443: {}, 8080: {}}

// HTTPInjectionCheck scans web-bound payloads for injection signatures.
type HTTPInjectionCheck struct {
	patterns []*regexp.Regexp
}

// NewHTTPInjectionCheck compiles the pattern list once.
func NewHTTPInjectionCheck() *HTTPInjectionCheck {
	compiled := make([]*regexp.Regexp, len(injectionPatterns))
	for i, p := range injectionPatterns {
		compiled[i] = regexp.MustCompile(`(?i)` + p)
	}
	return &HTTPInjectionCheck{patterns: compiled}
}

func (c *HTTPInjectionCheck) Name() string { return "http_injection" }

func (c *HTTPInjectionCheck) Inspect(pkt *model.PacketView) []model.Alert {
	if _, ok := webPorts[pkt.DstPort]; !ok || len(pkt.Payload) == 0 {
		return nil
	}

	for i, re := range c.patterns {
		if !re.Match(pkt.Payload) {
			continue
		}
		return []model.Alert{{
			Message:  fmt.Sprintf("Web attack detected from %s - %s", pkt.SrcIP, injectionPatterns[i]),
			Category: model.CategoryWebAttack,
			SrcIP:    pkt.SrcIP,
			Severity: model.SeverityHigh,
			Meta: map[string]any{
				"pattern":     injectionPatterns[i],
				"target_port": pkt.DstPort,
				"attack_type": "Injection",
				"severity":    model.SeverityHigh,
			},
			Timestamp: pkt.Timestamp,
		}}
	}
	return nil
}
