package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
)

// StatusHandler serves board status and the operator reset.
type StatusHandler struct {
	Status ports.BoardStatus
	Sink   ports.EventSink
	Store  ports.CredentialStore
	Label  string
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(status ports.BoardStatus, sink ports.EventSink, store ports.CredentialStore, label string) *StatusHandler {
	return &StatusHandler{
		Status: status,
		Sink:   sink,
		Store:  store,
		Label:  label,
	}
}

// HandleGetStatus returns the current board snapshot
func (h *StatusHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Status.Snapshot())
}

// HandleGetCredentials returns the saved network with the password hidden
func (h *StatusHandler) HandleGetCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.Store.Load(r.Context(), h.Label)
	if errors.Is(err, domain.ErrCredentialsNotFound) {
		http.Error(w, "No saved credentials", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, creds.Redacted())
}

// HandleResetCredentials asks the board to forget its network and go back
// to AP mode
func (h *StatusHandler) HandleResetCredentials(w http.ResponseWriter, r *http.Request) {
	ev := domain.NewBoardEvent(domain.EventOperatorReset)
	if !h.Sink.Post(ev) {
		http.Error(w, "Board busy, retry later", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "reset_requested",
		"event_id": ev.ID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
