package builtin

import (
	"fmt"

	"netsentry/internal/model"
)

// XmasScanCheck flags TCP segments with FIN, PSH and URG all lit.
type XmasScanCheck struct{}

// NewXmasScanCheck builds the check.
func NewXmasScanCheck() *XmasScanCheck { return &XmasScanCheck{} }

func (c *XmasScanCheck) Name() string { return "xmas_scan" }

func (c *XmasScanCheck) Inspect(pkt *model.PacketView) []model.Alert {
	if pkt.Proto != model.ProtoTCP || !pkt.HasAllFlags("FPU") {
		return nil
	}
	return []model.Alert{{
		Message:  fmt.Sprintf("XMAS scan detected from %s", pkt.SrcIP),
		Category: model.CategoryPortScan,
		SrcIP:    pkt.SrcIP,
		Severity: model.SeverityHigh,
		Meta: map[string]any{
			"scan_type": "XMAS Scan",
			"severity":  model.SeverityHigh,
		},
		Timestamp: pkt.Timestamp,
	}}
}
