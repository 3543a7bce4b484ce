package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// Registered on the root router so a method mismatch answers 405.
	r.HandleFunc("/api/status", s.StatusHandler.HandleGetStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/credentials", s.StatusHandler.HandleGetCredentials).Methods(http.MethodGet)
	r.HandleFunc("/api/credentials", s.StatusHandler.HandleResetCredentials).Methods(http.MethodDelete)

	r.HandleFunc("/ws", s.WSManager.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}
