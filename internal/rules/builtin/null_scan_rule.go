package builtin

import (
	"fmt"

	"netsentry/internal/model"
)

// NullScanCheck flags TCP segments carrying no flags at all, a probe
// shape no legitimate stack produces.
type NullScanCheck struct{}

// NewNullScanCheck builds the check.
func NewNullScanCheck() *NullScanCheck { return &NullScanCheck{} }

func (c *NullScanCheck) Name() string { return "null_scan" }

func (c *NullScanCheck) Inspect(pkt *model.PacketView) []model.Alert {
	if pkt.Proto != model.ProtoTCP || pkt.TCPFlags != "" {
		return nil
	}
	return []model.Alert{{
		Message:  fmt.Sprintf("NULL scan detected from %s", pkt.SrcIP),
		Category: model.CategoryPortScan,
		SrcIP:    pkt.SrcIP,
		Severity: model.SeverityHigh,
		Meta: map[string]any{
			"scan_type": "NULL Scan",
			"severity":  model.SeverityHigh,
		},
		Timestamp: pkt.Timestamp,
	}}
}
