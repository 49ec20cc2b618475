package builtin

import (
	"fmt"
	"time"

	"netsentry/internal/model"
	"netsentry/internal/window"
)

const synFloodWindow = 10 * time.Second

type synFloodTracker struct {
	count       int
	windowStart time.Time
}

// SynFloodCheck counts packets per source over 10-second windows. When a
// window closes with more than the threshold, a critical DDoS alert
// fires. The window resets whether or not it fired.
type SynFloodCheck struct {
	threshold int
	sources   *window.SourceMap[*synFloodTracker]
}

// NewSynFloodCheck builds the check; a threshold of zero or less selects
// the default of 100 packets per window.
func NewSynFloodCheck(threshold, maxSources int) *SynFloodCheck {
	if threshold <= 0 {
		threshold = 100
	}
	return &SynFloodCheck{
		threshold: threshold,
		sources:   window.NewSourceMap[*synFloodTracker](maxSources),
	}
}

func (c *SynFloodCheck) Name() string { return "syn_flood" }

func (c *SynFloodCheck) Inspect(pkt *model.PacketView) []model.Alert {
	tracker := c.sources.GetOrCreate(pkt.SrcIP, func() *synFloodTracker {
		return &synFloodTracker{windowStart: pkt.Timestamp}
	})

	tracker.count++

	if pkt.Timestamp.Sub(tracker.windowStart) <= synFloodWindow {
		return nil
	}

	var alerts []model.Alert
	if tracker.count > c.threshold {
		alerts = append(alerts, model.Alert{
			Message:  fmt.Sprintf("SYN Flood attack from %s - %d packets in 10 seconds", pkt.SrcIP, tracker.count),
			Category: model.CategoryDDoS,
			SrcIP:    pkt.SrcIP,
			Severity: model.SeverityCritical,
			Meta: map[string]any{
				"packet_count": tracker.count,
				"duration":     10,
				"attack_type":  "SYN Flood",
				"severity":     model.SeverityCritical,
			},
			Timestamp: pkt.Timestamp,
		})
	}

	tracker.count = 0
	tracker.windowStart = pkt.Timestamp

	return alerts
}
