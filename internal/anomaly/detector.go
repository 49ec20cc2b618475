// Package anomaly implements the heuristic anomaly detector: sliding
// windows of recent traffic compared against an adaptive baseline.
package anomaly

import (
	"fmt"
	"time"

	"netsentry/internal/alert"
	"netsentry/internal/metrics"
	"netsentry/internal/model"
	"netsentry/internal/window"

	"github.com/sirupsen/logrus"
)

const (
	trafficWindowCap  = 500
	perSourceCap      = 200
	defaultLearning   = 300 * time.Second
	minBaselineRate   = 100.0
	spikeMultiplier   = 3.0
	stealthWindow     = 30 * time.Second
	bruteForceWindow  = 60 * time.Second
	scanWindow        = 60 * time.Second
	bruteForceLimit   = 15
	verticalScanLimit = 10
	horizontalLimit   = 20
)

var bruteForcePorts = map[uint16]struct{}{
	22: {}, 21: {}, 23: {}, 3389: {}, 1433: {}, 3306: {},
}

var serviceNames = map[uint16]string{
	22: "SSH", 21: "FTP", 23: "Telnet",
	80: "HTTP", 443: "HTTPS", 3389: "RDP",
	1433: "MSSQL", 3306: "MySQL", 5432: "PostgreSQL",
}

type baselines struct {
	packetsPerSecond     float64
	uniquePortsPerIP     int
	connectionsPerMinute int
}

// Config carries the detector's tunables. Zero values select defaults.
type Config struct {
	// LearningPeriod is how long baselines stay at their initial
	// constants before adapting, default 300 s.
	LearningPeriod time.Duration

	// HorizontalScanLegacyPorts selects the horizontal-scan semantics.
	// The default (false) counts distinct destination hosts contacted
	// from ephemeral source ports; true reproduces the legacy behavior
	// of counting distinct destination ports above 1024 instead.
	HorizontalScanLegacyPorts bool

	// MaxSources bounds the per-source maps; least-recently-written
	// sources are evicted past the ceiling. Default 100000.
	MaxSources int
}

// Detector is the heuristic anomaly detector. It is driven from the
// dispatcher only and needs no internal locking.
type Detector struct {
	cfg  Config
	sink alert.Sink

	trafficWindow  *window.Times
	portActivity   *window.SourceMap[*window.Ports]
	ipActivity     *window.SourceMap[*window.Times]
	hostActivity   *window.SourceMap[*window.Hosts]
	protocolCounts map[model.Protocol]int

	baselines baselines
	start     time.Time

	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewDetector builds the detector with its initial baseline constants.
// m may be nil.
func NewDetector(cfg Config, sink alert.Sink, m *metrics.Metrics, logger *logrus.Logger) *Detector {
	if cfg.LearningPeriod <= 0 {
		cfg.LearningPeriod = defaultLearning
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 100000
	}
	return &Detector{
		cfg:            cfg,
		sink:           sink,
		trafficWindow:  window.NewTimes(trafficWindowCap),
		portActivity:   window.NewSourceMap[*window.Ports](cfg.MaxSources),
		ipActivity:     window.NewSourceMap[*window.Times](cfg.MaxSources),
		hostActivity:   window.NewSourceMap[*window.Hosts](cfg.MaxSources),
		protocolCounts: make(map[model.Protocol]int),
		baselines: baselines{
			packetsPerSecond:     1000,
			uniquePortsPerIP:     25,
			connectionsPerMinute: 50,
		},
		logger:  logger,
		metrics: m,
	}
}

// Name implements pipeline.Detector.
func (d *Detector) Name() string { return "anomaly_detector" }

// BaselinePacketsPerSecond exposes the current adaptive baseline.
func (d *Detector) BaselinePacketsPerSecond() float64 {
	return d.baselines.packetsPerSecond
}

// Analyze implements pipeline.Detector: record the packet into every
// window, adapt the baseline once the learning period has elapsed, then
// run the checks in fixed order.
func (d *Detector) Analyze(pkt *model.PacketView) {
	now := pkt.Timestamp
	// The learning epoch follows packet time so that offline replay
	// behaves like live capture.
	if d.start.IsZero() {
		d.start = now
	}

	d.trafficWindow.Append(now)
	ports := d.portActivity.GetOrCreate(pkt.SrcIP, func() *window.Ports {
		return window.NewPorts(perSourceCap)
	})
	ports.Append(pkt.DstPort, now)
	times := d.ipActivity.GetOrCreate(pkt.SrcIP, func() *window.Times {
		return window.NewTimes(perSourceCap)
	})
	times.Append(now)
	if !d.cfg.HorizontalScanLegacyPorts {
		hosts := d.hostActivity.GetOrCreate(pkt.SrcIP, func() *window.Hosts {
			return window.NewHosts(perSourceCap)
		})
		hosts.Append(pkt.DstIP, now)
	}
	d.protocolCounts[pkt.Proto]++

	if d.metrics != nil {
		d.metrics.TrackedSources.WithLabelValues(d.Name()).Set(float64(d.portActivity.Len()))
	}

	if now.Sub(d.start) > d.cfg.LearningPeriod {
		d.updateBaselines(now)
	}

	d.checkTrafficSpike(now)
	d.checkStealthScan(pkt, ports, now)
	d.checkBruteForce(pkt, times, now)
	d.checkProtocolDistribution(now)
	d.checkVerticalScan(pkt, ports, now)
	d.checkHorizontalScan(pkt, ports, now)
}

func (d *Detector) updateBaselines(now time.Time) {
	recent := d.trafficWindow.CountAfter(now.Add(-60 * time.Second))
	if recent > 10 {
		rate := float64(recent) / 60.0
		if rate < minBaselineRate {
			rate = minBaselineRate
		}
		d.baselines.packetsPerSecond = rate
		if d.metrics != nil {
			d.metrics.BaselinePacketRate.Set(rate)
		}
	}
}

func (d *Detector) checkTrafficSpike(now time.Time) {
	if d.trafficWindow.Len() < 10 {
		return
	}

	recent := d.trafficWindow.CountAfter(now.Add(-5 * time.Second))
	currentRate := float64(recent) / 5.0

	if currentRate > d.baselines.packetsPerSecond*spikeMultiplier {
		d.raise(model.Alert{
			Message:  fmt.Sprintf("Traffic spike detected: %.1f packets/sec", currentRate),
			Category: model.CategoryAnomaly,
			SrcIP:    model.SrcMultiple,
			Severity: model.SeverityHigh,
			Meta: map[string]any{
				"current_rate": currentRate,
				"baseline":     d.baselines.packetsPerSecond,
				"anomaly_type": "Traffic Spike",
				"severity":     model.SeverityHigh,
			},
			Timestamp: now,
		})
	}
}

func (d *Detector) checkStealthScan(pkt *model.PacketView, ports *window.Ports, now time.Time) {
	if ports.Len() < 5 {
		return
	}

	uniquePorts := ports.DistinctAfter(now.Add(-stealthWindow), nil)
	if uniquePorts > d.baselines.uniquePortsPerIP {
		d.raise(model.Alert{
			Message:  fmt.Sprintf("Stealth port scan detected from %s - %d ports in 30s", pkt.SrcIP, uniquePorts),
			Category: model.CategoryPortScan,
			SrcIP:    pkt.SrcIP,
			Severity: model.SeverityMedium,
			Meta: map[string]any{
				"unique_ports": uniquePorts,
				"time_window":  30,
				"scan_type":    "Stealth Scan",
				"severity":     model.SeverityMedium,
			},
			Timestamp: now,
		})
	}
}

func (d *Detector) checkBruteForce(pkt *model.PacketView, times *window.Times, now time.Time) {
	if _, ok := bruteForcePorts[pkt.DstPort]; !ok {
		return
	}

	attempts := times.CountAfter(now.Add(-bruteForceWindow))
	if attempts > bruteForceLimit {
		d.raise(model.Alert{
			Message:  fmt.Sprintf("Brute force attempt on port %d from %s - %d attempts", pkt.DstPort, pkt.SrcIP, attempts),
			Category: model.CategoryBruteForce,
			SrcIP:    pkt.SrcIP,
			Severity: model.SeverityHigh,
			Meta: map[string]any{
				"target_port": pkt.DstPort,
				"attempts":    attempts,
				"service":     ServiceName(pkt.DstPort),
				"severity":    model.SeverityHigh,
			},
			Timestamp: now,
		})
	}
}

func (d *Detector) checkProtocolDistribution(now time.Time) {
	total := 0
	for _, n := range d.protocolCounts {
		total += n
	}
	if total < 100 {
		return
	}

	udpRatio := float64(d.protocolCounts[model.ProtoUDP]) / float64(total)
	if udpRatio > 0.8 {
		d.raise(model.Alert{
			Message:  fmt.Sprintf("UDP flood detected - %.1f%% UDP traffic", udpRatio*100),
			Category: model.CategoryDDoS,
			SrcIP:    model.SrcMultiple,
			Severity: model.SeverityMedium,
			Meta: map[string]any{
				"udp_ratio":    udpRatio,
				"anomaly_type": "Protocol Distribution",
				"severity":     model.SeverityMedium,
			},
			Timestamp: now,
		})
	}
}

func (d *Detector) checkVerticalScan(pkt *model.PacketView, ports *window.Ports, now time.Time) {
	if pkt.DstPort >= 1024 {
		return
	}

	wellKnown := ports.DistinctAfter(now.Add(-scanWindow), func(p uint16) bool { return p < 1024 })
	if wellKnown > verticalScanLimit {
		d.raise(model.Alert{
			Message:  fmt.Sprintf("Vertical port scan from %s - targeting well-known ports", pkt.SrcIP),
			Category: model.CategoryPortScan,
			SrcIP:    pkt.SrcIP,
			Severity: model.SeverityHigh,
			Meta: map[string]any{
				"target_ports": wellKnown,
				"scan_type":    "Vertical Scan",
				"severity":     model.SeverityHigh,
			},
			Timestamp: now,
		})
	}
}

func (d *Detector) checkHorizontalScan(pkt *model.PacketView, ports *window.Ports, now time.Time) {
	if pkt.SrcPort <= 1024 {
		return
	}

	var targets int
	if d.cfg.HorizontalScanLegacyPorts {
		targets = ports.DistinctAfter(now.Add(-scanWindow), func(p uint16) bool { return p > 1024 })
	} else {
		hosts, ok := d.hostActivity.Get(pkt.SrcIP)
		if !ok {
			return
		}
		targets = hosts.DistinctAfter(now.Add(-scanWindow))
	}

	if targets > horizontalLimit {
		d.raise(model.Alert{
			Message:  fmt.Sprintf("Horizontal port scan from %s - scanning multiple hosts", pkt.SrcIP),
			Category: model.CategoryPortScan,
			SrcIP:    pkt.SrcIP,
			Severity: model.SeverityMedium,
			Meta: map[string]any{
				"target_count": targets,
				"scan_type":    "Horizontal Scan",
				"severity":     model.SeverityMedium,
			},
			Timestamp: now,
		})
	}
}

func (d *Detector) raise(a model.Alert) {
	d.logger.Warnf("ANOMALY: %s - %s", a.Category, a.Message)
	d.sink.Emit(a)
}

// ServiceName maps well-known ports to service labels for alert metadata.
func ServiceName(port uint16) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return fmt.Sprintf("Port %d", port)
}
