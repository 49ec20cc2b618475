package builtin

import (
	"fmt"
	"time"

	"netsentry/internal/model"
	"netsentry/internal/window"
)

type portScanTracker struct {
	ports       map[uint16]struct{}
	synCount    int
	windowStart time.Time
}

// PortScanCheck detects SYN scans: a source touching many distinct
// destination ports while sending bare-SYN probes. The tracker resets as
// soon as an alert fires for the source.
type PortScanCheck struct {
	portThreshold int
	synThreshold  int
	sources       *window.SourceMap[*portScanTracker]
}

// NewPortScanCheck builds the check. Thresholds of zero or less select
// the defaults (15 distinct ports, 10 SYN packets).
func NewPortScanCheck(portThreshold, synThreshold, maxSources int) *PortScanCheck {
	if portThreshold <= 0 {
		portThreshold = 15
	}
	if synThreshold <= 0 {
		synThreshold = 10
	}
	return &PortScanCheck{
		portThreshold: portThreshold,
		synThreshold:  synThreshold,
		sources:       window.NewSourceMap[*portScanTracker](maxSources),
	}
}

func (c *PortScanCheck) Name() string { return "port_scan" }

func (c *PortScanCheck) Inspect(pkt *model.PacketView) []model.Alert {
	tracker := c.sources.GetOrCreate(pkt.SrcIP, func() *portScanTracker {
		return &portScanTracker{
			ports:       make(map[uint16]struct{}),
			windowStart: pkt.Timestamp,
		}
	})

	tracker.ports[pkt.DstPort] = struct{}{}
	if pkt.TCPFlags == "S" {
		tracker.synCount++
	}

	uniquePorts := len(tracker.ports)
	if uniquePorts <= c.portThreshold || tracker.synCount <= c.synThreshold {
		return nil
	}

	a := model.Alert{
		Message:  fmt.Sprintf("Advanced port scan detected from %s - %d unique ports", pkt.SrcIP, uniquePorts),
		Category: model.CategoryPortScan,
		SrcIP:    pkt.SrcIP,
		Severity: model.SeverityHigh,
		Meta: map[string]any{
			"unique_ports": uniquePorts,
			"syn_count":    tracker.synCount,
			"scan_type":    "SYN Scan",
			"severity":     model.SeverityHigh,
		},
		Timestamp: pkt.Timestamp,
	}

	c.sources.Put(pkt.SrcIP, &portScanTracker{
		ports:       make(map[uint16]struct{}),
		windowStart: pkt.Timestamp,
	})

	return []model.Alert{a}
}
