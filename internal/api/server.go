package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewServer builds the dashboard HTTP server.
func NewServer(port string, h *Handlers) *http.Server {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	apiRoutes := router.PathPrefix("/api/v1").Subrouter()

	apiRoutes.HandleFunc("/alerts/timeline", h.GetAlertsTimeline).Methods("GET")
	apiRoutes.HandleFunc("/stream/alerts", h.StreamAlerts).Methods("GET")
	apiRoutes.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	apiRoutes.HandleFunc("/alerts/{id}", h.GetAlert).Methods("GET")
	apiRoutes.HandleFunc("/stats", h.GetStats).Methods("GET")
	apiRoutes.HandleFunc("/rules", h.GetRules).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	return &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
