// Package mldetect implements the statistical detector: an online
// per-feature profile built from the first packets seen, then a
// normalized-distance score for every packet after it.
package mldetect

import (
	"fmt"
	"math"
	"time"

	"netsentry/internal/alert"
	"netsentry/internal/model"
	"netsentry/internal/window"

	"github.com/sirupsen/logrus"
)

const (
	featureDim       = 10
	featureWindowCap = 1000
	trainAfter       = 100
	scoreThreshold   = 2.0
)

type ipBehavior struct {
	packetCount int
	uniquePorts map[uint16]struct{}
	firstSeen   time.Time
}

// Detector scores packets by their distance from a per-feature
// mean/stddev profile. The profile is trained exactly once, after the
// feature window first exceeds trainAfter entries, and frozen for the
// rest of the process lifetime.
type Detector struct {
	sink alert.Sink

	features  [][featureDim]float64
	behavior  *window.SourceMap[*ipBehavior]
	means     [featureDim]float64
	stds      [featureDim]float64
	isTrained bool

	logger *logrus.Logger
}

// NewDetector builds an untrained detector. maxSources bounds the
// per-source behavior map.
func NewDetector(maxSources int, sink alert.Sink, logger *logrus.Logger) *Detector {
	if maxSources <= 0 {
		maxSources = 100000
	}
	return &Detector{
		sink:     sink,
		behavior: window.NewSourceMap[*ipBehavior](maxSources),
		logger:   logger,
	}
}

// Name implements pipeline.Detector.
func (d *Detector) Name() string { return "ml_detector" }

// Trained reports whether the profile has been frozen.
func (d *Detector) Trained() bool { return d.isTrained }

// Analyze implements pipeline.Detector: extract the feature vector,
// buffer it, train once past the threshold, and score when trained.
func (d *Detector) Analyze(pkt *model.PacketView) {
	features := d.extractFeatures(pkt)

	d.features = append(d.features, features)
	if len(d.features) > featureWindowCap {
		d.features = d.features[len(d.features)-featureWindowCap:]
	}

	if len(d.features) > trainAfter && !d.isTrained {
		d.train()
	}

	if !d.isTrained {
		return
	}

	score := d.anomalyScore(features)
	if score > scoreThreshold {
		a := model.Alert{
			Message:  fmt.Sprintf("ML anomaly detected from %s - score: %.2f", pkt.SrcIP, score),
			Category: model.CategoryMLAnomaly,
			SrcIP:    pkt.SrcIP,
			Severity: model.SeverityMedium,
			Meta: map[string]any{
				"anomaly_score": score,
				"protocol":      string(pkt.Proto),
				"target_port":   pkt.DstPort,
				"severity":      model.SeverityMedium,
			},
			Timestamp: pkt.Timestamp,
		}
		d.logger.Warnf("ML DETECTION: %s - %s", a.Category, a.Message)
		d.sink.Emit(a)
	}
}

// extractFeatures updates the per-source counters first, then captures
// the vector, so packet_count and unique_ports include this packet.
func (d *Detector) extractFeatures(pkt *model.PacketView) [featureDim]float64 {
	info := d.behavior.GetOrCreate(pkt.SrcIP, func() *ipBehavior {
		return &ipBehavior{
			uniquePorts: make(map[uint16]struct{}),
			firstSeen:   pkt.Timestamp,
		}
	})

	info.packetCount++
	info.uniquePorts[pkt.DstPort] = struct{}{}

	var lowPort float64
	if pkt.DstPort < 1024 {
		lowPort = 1
	}

	return [featureDim]float64{
		float64(info.packetCount),
		float64(len(info.uniquePorts)),
		pkt.Timestamp.Sub(info.firstSeen).Seconds(),
		float64(len(pkt.Payload)),
		float64(pkt.SrcPort),
		float64(pkt.DstPort),
		boolFeature(pkt.Proto == model.ProtoTCP),
		boolFeature(pkt.Proto == model.ProtoUDP),
		boolFeature(pkt.Proto == model.ProtoICMP),
		lowPort,
	}
}

// train computes the per-feature mean and population standard deviation
// over the buffered vectors. Zero deviations become 1 so scoring never
// divides by zero. Training happens at most once per process.
func (d *Detector) train() {
	n := float64(len(d.features))
	if n < 2 {
		return
	}

	for i := 0; i < featureDim; i++ {
		sum := 0.0
		for _, f := range d.features {
			sum += f[i]
		}
		mean := sum / n

		variance := 0.0
		for _, f := range d.features {
			delta := f[i] - mean
			variance += delta * delta
		}
		variance /= n

		d.means[i] = mean
		if variance > 0 {
			d.stds[i] = math.Sqrt(variance)
		} else {
			d.stds[i] = 1
		}
	}

	d.isTrained = true
	d.logger.Infof("ML model trained on %d packets", len(d.features))
}

func (d *Detector) anomalyScore(features [featureDim]float64) float64 {
	score := 0.0
	for i := 0; i < featureDim; i++ {
		normalized := (features[i] - d.means[i]) / d.stds[i]
		score += normalized * normalized
	}
	return math.Sqrt(score)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
