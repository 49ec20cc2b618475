// Package api serves the dashboard: REST queries over the in-memory
// alert store and a websocket stream of live alerts.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"netsentry/internal/model"
	"netsentry/internal/storage"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Handlers carries the API dependencies.
type Handlers struct {
	store    *storage.Store
	rules    []model.SignatureRule
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

// NewHandlers builds the handler set. rules is the immutable signature
// set loaded at startup, shared by reference.
func NewHandlers(store *storage.Store, rules []model.SignatureRule, logger *logrus.Logger) *Handlers {
	return &Handlers{
		store:  store,
		rules:  rules,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// GetAlerts returns recent alerts, newest first, with optional filters.
func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	severity := r.URL.Query().Get("severity")
	category := r.URL.Query().Get("category")
	search := r.URL.Query().Get("search")

	alerts := h.store.GetAlerts(limit, severity, category, search)
	h.writeJSON(w, alerts)
}

// GetAlert returns one alert by id.
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	alert := h.store.GetAlertByID(id)
	if alert == nil {
		http.Error(w, "alert not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, alert)
}

// GetAlertsTimeline returns alerts within an RFC3339 start/end range.
func (h *Handlers) GetAlertsTimeline(w http.ResponseWriter, r *http.Request) {
	var start, end time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid start time", http.StatusBadRequest)
			return
		}
		start = t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid end time", http.StatusBadRequest)
			return
		}
		end = t
	}

	h.writeJSON(w, h.store.GetTimeline(start, end))
}

// GetStats aggregates the dashboard summary in one response.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"total_alerts":     h.store.TotalAlerts(),
		"category_count":   h.store.CategoryCounts(),
		"top_attackers":    h.store.TopAttackers(10),
		"alerts_over_time": h.store.AlertsOverTime(24),
		"recent_alerts":    h.store.GetAlerts(10, "", "", ""),
		"attack_stats":     h.store.GetAttackStats(),
	}
	h.writeJSON(w, stats)
}

// GetRules returns the loaded signature rules.
func (h *Handlers) GetRules(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, model.SignatureRuleSet{Rules: h.rules})
}

// StreamAlerts upgrades to a websocket and pushes live alerts matching
// the optional severity/category filters.
func (h *Handlers) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := &storage.AlertSubscriber{
		ID:      strconv.FormatInt(time.Now().UnixNano(), 10),
		Channel: make(chan storage.Alert, 100),
		Filter: storage.AlertFilter{
			Severity: r.URL.Query().Get("severity"),
			Category: r.URL.Query().Get("category"),
		},
	}

	h.store.Subscribe(sub)
	defer h.store.Unsubscribe(sub)

	// Ping to keep the connection alive; reads drain client pongs.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case alert, ok := <-sub.Channel:
			if !ok {
				return
			}
			if err := conn.WriteJSON(alert); err != nil {
				h.logger.Errorf("WebSocket write error: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Errorf("Failed to encode response: %v", err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
