// Package pipeline pulls frames from the packet source, decodes them,
// and feeds every decoded packet to each detector in a fixed order.
package pipeline

import (
	"context"
	"errors"

	"netsentry/internal/capture"
	"netsentry/internal/metrics"
	"netsentry/internal/model"

	"github.com/google/gopacket"
	"github.com/sirupsen/logrus"
)

// ErrSourceClosed is returned by Run when the packet source stops
// yielding frames. For offline replay that is end of file; for a live
// interface it is unexpected and the caller should initiate shutdown.
var ErrSourceClosed = errors.New("packet source closed")

// Detector consumes decoded packets. Detectors run sequentially per
// packet on the dispatcher goroutine and need no internal locking.
type Detector interface {
	Name() string
	Analyze(pkt *model.PacketView)
}

// Dispatcher is the single consumer of the packet source. A packet is
// either fully dispatched to all detectors or dropped before dispatch;
// a fault in one detector is isolated to that detector and that packet.
type Dispatcher struct {
	source    capture.Source
	detectors []Detector
	logger    *logrus.Logger
	metrics   *metrics.Metrics

	packetCount uint64
}

// NewDispatcher wires the source to the detectors. Detector order is the
// emission order of alerts within one packet.
func NewDispatcher(source capture.Source, detectors []Detector, m *metrics.Metrics, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		source:    source,
		detectors: detectors,
		logger:    logger,
		metrics:   m,
	}
}

// Run reads from the source until the context is cancelled or the source
// closes. Cancellation stops reading new packets; the in-flight packet
// finishes dispatch first.
func (d *Dispatcher) Run(ctx context.Context) error {
	packets := d.source.Packets()
	for {
		select {
		case <-ctx.Done():
			d.logger.Infof("Dispatcher stopping after %d packets", d.packetCount)
			return nil
		case raw, ok := <-packets:
			if !ok {
				return ErrSourceClosed
			}
			d.process(raw)
		}
	}
}

// PacketCount returns how many packets reached the detectors.
func (d *Dispatcher) PacketCount() uint64 { return d.packetCount }

func (d *Dispatcher) process(raw gopacket.Packet) {
	view, ok := capture.Decode(raw)
	if !ok {
		if d.metrics != nil {
			d.metrics.PacketsDropped.Inc()
		}
		return
	}

	d.packetCount++
	if d.metrics != nil {
		d.metrics.PacketsProcessed.Inc()
		d.metrics.PacketsByProtocol.WithLabelValues(string(view.Proto)).Inc()
	}
	if d.packetCount%100 == 0 {
		d.logger.Infof("Processed %d packets...", d.packetCount)
	}

	for _, det := range d.detectors {
		d.dispatch(det, view)
	}
}

func (d *Dispatcher) dispatch(det Detector, pkt *model.PacketView) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("Detector %s failed on packet from %s: %v", det.Name(), pkt.SrcIP, r)
			if d.metrics != nil {
				d.metrics.DetectorErrors.WithLabelValues(det.Name()).Inc()
			}
		}
	}()
	det.Analyze(pkt)
}
