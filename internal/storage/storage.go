// Package storage keeps the persisted form of alerts: an in-memory ring
// the dashboard API reads and streams from, plus an optional PostgreSQL
// store for durable history.
package storage

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"netsentry/internal/geoip"
	"netsentry/internal/model"

	"github.com/sirupsen/logrus"
)

// Alert is the stored, geolocation-enriched form of a detector alert.
type Alert struct {
	ID          string         `json:"id"`
	Message     string         `json:"message"`
	Category    string         `json:"category"`
	SrcIP       string         `json:"src_ip"`
	Country     string         `json:"country"`
	CountryCode string         `json:"country_code"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Severity    string         `json:"severity"`
	Meta        map[string]any `json:"meta,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewAlert builds a stored alert from a detector alert and its
// geolocation.
func NewAlert(a model.Alert, loc geoip.Location) Alert {
	return Alert{
		Message:     a.Message,
		Category:    a.Category,
		SrcIP:       a.SrcIP,
		Country:     loc.Country,
		CountryCode: loc.CountryCode,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		Severity:    a.Severity,
		Meta:        a.Meta,
		Timestamp:   a.Timestamp,
	}
}

// AlertSubscriber receives live alerts over its channel, filtered.
type AlertSubscriber struct {
	ID      string
	Channel chan Alert
	Filter  AlertFilter
}

// AlertFilter narrows a subscription. Empty fields match everything.
type AlertFilter struct {
	Severity string
	Category string
}

func (f AlertFilter) matches(a Alert) bool {
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	return true
}

// Store is the in-memory alert store with pub/sub fanout.
type Store struct {
	mu        sync.RWMutex
	alerts    []Alert
	maxAlerts int
	nextID    atomic.Uint64
	logger    *logrus.Logger

	subsMu sync.RWMutex
	subs   map[*AlertSubscriber]bool
}

// NewStore returns a store keeping at most maxAlerts recent alerts.
func NewStore(maxAlerts int, logger *logrus.Logger) *Store {
	if maxAlerts <= 0 {
		maxAlerts = 10000
	}
	return &Store{
		alerts:    make([]Alert, 0),
		maxAlerts: maxAlerts,
		logger:    logger,
		subs:      make(map[*AlertSubscriber]bool),
	}
}

// Add assigns an id, stores the alert, and notifies subscribers.
// It returns the stored record.
func (s *Store) Add(alert Alert) Alert {
	alert.ID = strconv.FormatUint(s.nextID.Add(1), 10)
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > s.maxAlerts {
		s.alerts = s.alerts[len(s.alerts)-s.maxAlerts:]
	}
	s.mu.Unlock()

	s.notifySubscribers(alert)
	return alert
}

// GetAlerts returns up to limit alerts, newest first, optionally filtered
// by severity, category, and a message substring.
func (s *Store) GetAlerts(limit int, severity, category, search string) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Alert, 0)
	for i := len(s.alerts) - 1; i >= 0 && len(result) < limit; i-- {
		a := s.alerts[i]
		if severity != "" && a.Severity != severity {
			continue
		}
		if category != "" && a.Category != category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Message), strings.ToLower(search)) {
			continue
		}
		result = append(result, a)
	}
	return result
}

// GetAlertByID returns the alert with the given id, or nil.
func (s *Store) GetAlertByID(id string) *Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			a := s.alerts[i]
			return &a
		}
	}
	return nil
}

// GetTimeline returns alerts within [start, end]. Zero bounds are open.
func (s *Store) GetTimeline(start, end time.Time) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Alert, 0)
	for i := range s.alerts {
		a := s.alerts[i]
		if !start.IsZero() && a.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && a.Timestamp.After(end) {
			continue
		}
		result = append(result, a)
	}
	return result
}

// TotalAlerts returns the number of stored alerts.
func (s *Store) TotalAlerts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// CategoryCounts returns alert counts grouped by category.
func (s *Store) CategoryCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for i := range s.alerts {
		counts[s.alerts[i].Category]++
	}
	return counts
}

// Attacker is one row of the top-attackers ranking.
type Attacker struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// TopAttackers returns the most frequent source addresses, descending.
func (s *Store) TopAttackers(limit int) []Attacker {
	s.mu.RLock()
	counts := make(map[string]*Attacker)
	for i := range s.alerts {
		a := s.alerts[i]
		if entry, ok := counts[a.SrcIP]; ok {
			entry.Count++
		} else {
			counts[a.SrcIP] = &Attacker{IP: a.SrcIP, Country: a.Country, Count: 1}
		}
	}
	s.mu.RUnlock()

	ranked := make([]Attacker, 0, len(counts))
	for _, entry := range counts {
		ranked = append(ranked, *entry)
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Count > ranked[j-1].Count; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// TimeBucket is one hourly bucket of the alerts-over-time series.
type TimeBucket struct {
	Time  time.Time `json:"time"`
	Count int       `json:"count"`
}

// AlertsOverTime returns hourly alert counts for the trailing window.
func (s *Store) AlertsOverTime(hours int) []TimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	buckets := make(map[time.Time]int)
	for i := range s.alerts {
		ts := s.alerts[i].Timestamp
		if ts.Before(cutoff) {
			continue
		}
		buckets[ts.Truncate(time.Hour)]++
	}

	series := make([]TimeBucket, 0, len(buckets))
	for t, n := range buckets {
		series = append(series, TimeBucket{Time: t, Count: n})
	}
	for i := 1; i < len(series); i++ {
		for j := i; j > 0 && series[j].Time.Before(series[j-1].Time); j-- {
			series[j], series[j-1] = series[j-1], series[j]
		}
	}
	return series
}

// AttackStats summarizes the store for the dashboard header.
type AttackStats struct {
	HighSeverityAlerts int `json:"high_severity_alerts"`
	LastHourAlerts     int `json:"last_hour_alerts"`
	UniqueAttackers    int `json:"unique_attackers"`
}

// GetAttackStats computes the dashboard summary counters.
func (s *Store) GetAttackStats() AttackStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := AttackStats{}
	hourAgo := time.Now().Add(-time.Hour)
	sources := make(map[string]struct{})
	for i := range s.alerts {
		a := s.alerts[i]
		if a.Severity == model.SeverityHigh || a.Severity == model.SeverityCritical {
			stats.HighSeverityAlerts++
		}
		if a.Timestamp.After(hourAgo) {
			stats.LastHourAlerts++
		}
		sources[a.SrcIP] = struct{}{}
	}
	stats.UniqueAttackers = len(sources)
	return stats
}

// Subscribe registers a live alert subscriber.
func (s *Store) Subscribe(sub *AlertSubscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs[sub] = true
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(sub *AlertSubscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.subs[sub] {
		delete(s.subs, sub)
		close(sub.Channel)
	}
}

func (s *Store) notifySubscribers(alert Alert) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for sub := range s.subs {
		if !sub.Filter.matches(alert) {
			continue
		}
		select {
		case sub.Channel <- alert:
		default:
			// Subscriber is not draining; skip rather than block.
		}
	}
}
