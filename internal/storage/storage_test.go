package storage

import (
	"fmt"
	"io"
	"testing"
	"time"

	"netsentry/internal/geoip"
	"netsentry/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func storedAlert(src, category, severity string) Alert {
	return NewAlert(model.Alert{
		Message:   fmt.Sprintf("%s from %s", category, src),
		Category:  category,
		SrcIP:     src,
		Severity:  severity,
		Timestamp: time.Now(),
	}, geoip.Location{Country: "Testland", CountryCode: "TL"})
}

func TestAddAssignsIDsAndTrims(t *testing.T) {
	s := NewStore(5, quietLogger())

	var ids []string
	for i := 0; i < 8; i++ {
		a := s.Add(storedAlert("10.0.0.1", model.CategoryPortScan, model.SeverityHigh))
		ids = append(ids, a.ID)
	}

	assert.Equal(t, 5, s.TotalAlerts(), "store keeps at most maxAlerts")
	for i := 1; i < len(ids); i++ {
		assert.NotEqual(t, ids[i-1], ids[i])
	}

	// The oldest alerts were trimmed away.
	assert.Nil(t, s.GetAlertByID(ids[0]))
	assert.NotNil(t, s.GetAlertByID(ids[7]))
}

func TestGetAlertsFilters(t *testing.T) {
	s := NewStore(100, quietLogger())
	s.Add(storedAlert("10.0.0.1", model.CategoryPortScan, model.SeverityHigh))
	s.Add(storedAlert("10.0.0.2", model.CategoryDDoS, model.SeverityCritical))
	s.Add(storedAlert("10.0.0.3", model.CategoryPortScan, model.SeverityMedium))

	assert.Len(t, s.GetAlerts(100, "", "", ""), 3)
	assert.Len(t, s.GetAlerts(100, model.SeverityHigh, "", ""), 1)
	assert.Len(t, s.GetAlerts(100, "", model.CategoryPortScan, ""), 2)
	assert.Len(t, s.GetAlerts(100, "", "", "10.0.0.2"), 1)
	assert.Len(t, s.GetAlerts(1, "", "", ""), 1)

	newest := s.GetAlerts(100, "", "", "")[0]
	assert.Equal(t, "10.0.0.3", newest.SrcIP, "newest first")
}

func TestSubscribersReceiveFilteredAlerts(t *testing.T) {
	s := NewStore(100, quietLogger())

	all := &AlertSubscriber{ID: "all", Channel: make(chan Alert, 10)}
	critical := &AlertSubscriber{
		ID:      "crit",
		Channel: make(chan Alert, 10),
		Filter:  AlertFilter{Severity: model.SeverityCritical},
	}
	s.Subscribe(all)
	s.Subscribe(critical)

	s.Add(storedAlert("10.0.0.1", model.CategoryPortScan, model.SeverityHigh))
	s.Add(storedAlert("10.0.0.2", model.CategoryDDoS, model.SeverityCritical))

	assert.Len(t, all.Channel, 2)
	require.Len(t, critical.Channel, 1)
	got := <-critical.Channel
	assert.Equal(t, model.SeverityCritical, got.Severity)

	s.Unsubscribe(all)
	s.Unsubscribe(critical)

	// Channels are closed on unsubscribe; a further add must not panic.
	s.Add(storedAlert("10.0.0.3", model.CategoryPortScan, model.SeverityLow))
}

func TestTopAttackers(t *testing.T) {
	s := NewStore(100, quietLogger())
	for i := 0; i < 5; i++ {
		s.Add(storedAlert("10.0.0.1", model.CategoryPortScan, model.SeverityHigh))
	}
	for i := 0; i < 3; i++ {
		s.Add(storedAlert("10.0.0.2", model.CategoryDDoS, model.SeverityHigh))
	}
	s.Add(storedAlert("10.0.0.3", model.CategoryBruteForce, model.SeverityHigh))

	top := s.TopAttackers(2)
	require.Len(t, top, 2)
	assert.Equal(t, "10.0.0.1", top[0].IP)
	assert.Equal(t, 5, top[0].Count)
	assert.Equal(t, "10.0.0.2", top[1].IP)
}

func TestAttackStats(t *testing.T) {
	s := NewStore(100, quietLogger())
	s.Add(storedAlert("10.0.0.1", model.CategoryPortScan, model.SeverityHigh))
	s.Add(storedAlert("10.0.0.1", model.CategoryDDoS, model.SeverityCritical))
	s.Add(storedAlert("10.0.0.2", model.CategoryAnomaly, model.SeverityLow))

	stats := s.GetAttackStats()
	assert.Equal(t, 2, stats.HighSeverityAlerts, "high and critical both count")
	assert.Equal(t, 3, stats.LastHourAlerts)
	assert.Equal(t, 2, stats.UniqueAttackers)
}

func TestCategoryCountsAndTimeline(t *testing.T) {
	s := NewStore(100, quietLogger())
	s.Add(storedAlert("10.0.0.1", model.CategoryPortScan, model.SeverityHigh))
	s.Add(storedAlert("10.0.0.1", model.CategoryPortScan, model.SeverityHigh))
	s.Add(storedAlert("10.0.0.1", model.CategoryDDoS, model.SeverityHigh))

	counts := s.CategoryCounts()
	assert.Equal(t, 2, counts[model.CategoryPortScan])
	assert.Equal(t, 1, counts[model.CategoryDDoS])

	timeline := s.GetTimeline(time.Now().Add(-time.Minute), time.Time{})
	assert.Len(t, timeline, 3)

	empty := s.GetTimeline(time.Now().Add(time.Minute), time.Time{})
	assert.Empty(t, empty)
}
