// Package builtin holds the checks the rule engine evaluates on every
// packet: the loaded signature rules plus the six hard-coded heuristics.
package builtin

import (
	"strings"

	"netsentry/internal/model"
)

// SignatureRuleCheck evaluates the declarative signature rules loaded at
// startup. Every matching rule fires independently; there is no
// first-match short-circuit.
type SignatureRuleCheck struct {
	rules []model.SignatureRule
}

// NewSignatureRuleCheck wraps the loaded rule set. The slice is shared by
// reference and must not be mutated after startup.
func NewSignatureRuleCheck(rules []model.SignatureRule) *SignatureRuleCheck {
	return &SignatureRuleCheck{rules: rules}
}

func (c *SignatureRuleCheck) Name() string { return "signature_rules" }

func (c *SignatureRuleCheck) Inspect(pkt *model.PacketView) []model.Alert {
	var alerts []model.Alert
	for i := range c.rules {
		rule := &c.rules[i]
		if !ruleMatches(rule, pkt) {
			continue
		}
		alerts = append(alerts, model.Alert{
			Message:  rule.Description,
			Category: rule.Category,
			SrcIP:    pkt.SrcIP,
			Severity: rule.Severity,
			Meta: map[string]any{
				"rule_id":     rule.ID,
				"protocol":    string(pkt.Proto),
				"source_port": pkt.SrcPort,
				"dest_port":   pkt.DstPort,
				"severity":    rule.Severity,
			},
			Timestamp: pkt.Timestamp,
		})
	}
	return alerts
}

// ruleMatches evaluates predicates in declaration order; the first failing
// predicate rejects. Missing predicates are wildcards, so a rule with none
// matches every packet.
func ruleMatches(rule *model.SignatureRule, pkt *model.PacketView) bool {
	if rule.Protocol != "" && rule.Protocol != string(pkt.Proto) {
		return false
	}
	if rule.DstPort != nil && *rule.DstPort != pkt.DstPort {
		return false
	}
	if rule.SrcIP != "" && rule.SrcIP != pkt.SrcIP {
		return false
	}
	if rule.Flags != "" && pkt.Proto == model.ProtoTCP && !pkt.HasAllFlags(rule.Flags) {
		return false
	}
	if rule.Content != "" {
		if len(pkt.Payload) == 0 {
			return false
		}
		if !strings.Contains(strings.ToLower(string(pkt.Payload)), strings.ToLower(rule.Content)) {
			return false
		}
	}
	return true
}
