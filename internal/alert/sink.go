package alert

import (
	"context"
	"sync"
	"time"

	"netsentry/internal/geoip"
	"netsentry/internal/metrics"
	"netsentry/internal/model"
	"netsentry/internal/storage"

	"github.com/sirupsen/logrus"
)

// Sink receives alerts from the detectors. Implementations must never
// block the packet pipeline.
type Sink interface {
	Emit(alert model.Alert)
}

// AsyncSink decouples the detectors from enrichment, persistence, and
// notification with a bounded queue. A single worker drains the queue, so
// sink-side ordering follows emission ordering. When the queue is full the
// alert is dropped and counted; that is the deliberate failure mode under
// a flood.
type AsyncSink struct {
	queue chan model.Alert

	geo       *geoip.Resolver
	store     *storage.Store
	pg        *storage.PostgresStore
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	notifiers []Notifier
	mu        sync.RWMutex

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAsyncSink builds the sink and starts its worker. geo and pg may be
// nil; store and logger must not be.
func NewAsyncSink(queueSize int, store *storage.Store, geo *geoip.Resolver, pg *storage.PostgresStore, m *metrics.Metrics, logger *logrus.Logger) *AsyncSink {
	if queueSize <= 0 {
		queueSize = 1000
	}
	s := &AsyncSink{
		queue:   make(chan model.Alert, queueSize),
		geo:     geo,
		store:   store,
		pg:      pg,
		logger:  logger,
		metrics: m,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// RegisterNotifier adds an outbound notification channel.
func (s *AsyncSink) RegisterNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// Emit implements Sink. It never blocks: on queue overflow the alert is
// dropped and the drop counter incremented.
func (s *AsyncSink) Emit(alert model.Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if s.metrics != nil {
		s.metrics.AlertsTotal.WithLabelValues(alert.Category, alert.Severity).Inc()
	}

	select {
	case s.queue <- alert:
		if s.metrics != nil {
			s.metrics.SinkQueueDepth.Set(float64(len(s.queue)))
		}
	default:
		if s.metrics != nil {
			s.metrics.SinkDropped.Inc()
		}
		s.logger.Debugf("Alert queue full, dropping %s alert from %s", alert.Category, alert.SrcIP)
	}
}

// Close stops accepting alerts and drains the queue, waiting at most
// timeout for the worker to finish.
func (s *AsyncSink) Close(timeout time.Duration) {
	s.closeOnce.Do(func() {
		close(s.queue)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("Alert sink drain timed out, abandoning queued alerts")
	}
}

func (s *AsyncSink) run() {
	defer s.wg.Done()
	for a := range s.queue {
		s.deliver(a)
		if s.metrics != nil {
			s.metrics.SinkQueueDepth.Set(float64(len(s.queue)))
		}
	}
}

func (s *AsyncSink) deliver(a model.Alert) {
	loc := geoip.Location{Country: "Unknown", CountryCode: "XX"}
	if s.geo != nil && a.SrcIP != model.SrcMultiple {
		loc = s.geo.Lookup(context.Background(), a.SrcIP)
	}

	stored := s.store.Add(storage.NewAlert(a, loc))

	if s.pg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := s.pg.SaveAlert(ctx, stored); err != nil {
			s.logger.Errorf("Failed to persist alert: %v", err)
		}
		cancel()
	}

	s.mu.RLock()
	notifiers := make([]Notifier, len(s.notifiers))
	copy(notifiers, s.notifiers)
	s.mu.RUnlock()

	for _, n := range notifiers {
		if err := n.SendAlert(stored); err != nil {
			s.logger.Errorf("Failed to send alert: %v", err)
		}
	}
}
