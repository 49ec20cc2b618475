// Package rules implements the signature rule engine and its hard-coded
// heuristic checks. The engine is one of the three detectors fed by the
// dispatcher; every check sees every packet, in registration order, and
// emits its alerts to the sink.
package rules

import (
	"netsentry/internal/alert"
	"netsentry/internal/model"
	"netsentry/internal/rules/builtin"

	"github.com/sirupsen/logrus"
)

// Check is a single detection heuristic evaluated against each packet.
// Inspect returns the alerts the packet triggered, possibly none.
type Check interface {
	Name() string
	Inspect(pkt *model.PacketView) []model.Alert
}

// Engine runs the registered checks against every dispatched packet.
type Engine struct {
	checks []Check
	sink   alert.Sink
	logger *logrus.Logger
}

// NewEngine creates an empty engine emitting to the given sink.
func NewEngine(sink alert.Sink, logger *logrus.Logger) *Engine {
	return &Engine{
		checks: make([]Check, 0),
		sink:   sink,
		logger: logger,
	}
}

// NewDefaultEngine assembles the standard check set: the loaded signature
// rules followed by the six built-in heuristics, in their fixed order.
func NewDefaultEngine(signatures []model.SignatureRule, opts Options, sink alert.Sink, logger *logrus.Logger) *Engine {
	e := NewEngine(sink, logger)
	e.Register(builtin.NewSignatureRuleCheck(signatures))
	e.Register(builtin.NewPortScanCheck(opts.PortScanPorts, opts.PortScanSyns, opts.MaxSources))
	e.Register(builtin.NewSynFloodCheck(opts.SynFloodThreshold, opts.MaxSources))
	e.Register(builtin.NewHTTPInjectionCheck())
	e.Register(builtin.NewDNSTunnelCheck(opts.DNSQueryLength))
	e.Register(builtin.NewNullScanCheck())
	e.Register(builtin.NewXmasScanCheck())
	return e
}

// Options carries the tunable thresholds of the built-in checks. Zero
// values select the defaults.
type Options struct {
	PortScanPorts     int // distinct ports before a SYN-scan alert, default 15
	PortScanSyns      int // SYN packets before a SYN-scan alert, default 10
	SynFloodThreshold int // packets per 10 s window, default 100
	DNSQueryLength    int // qname length before a tunnelling alert, default 100
	MaxSources        int // per-source tracker ceiling, default 100000
}

// Register appends a check to the evaluation order.
func (e *Engine) Register(c Check) {
	e.checks = append(e.checks, c)
	e.logger.Infof("Registered rule check: %s", c.Name())
}

// Name implements pipeline.Detector.
func (e *Engine) Name() string { return "rule_engine" }

// Analyze implements pipeline.Detector: it evaluates every check against
// the packet and emits the resulting alerts in order.
func (e *Engine) Analyze(pkt *model.PacketView) {
	for _, c := range e.checks {
		for _, a := range c.Inspect(pkt) {
			e.logger.Warnf("ALERT: %s - %s", a.Category, a.Message)
			e.sink.Emit(a)
		}
	}
}
