package processor

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"audittracker/internal/apperrors"
	"audittracker/internal/gateway"
	"audittracker/internal/tracker"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Handler serves the processor wire contract over HTTP:
//
//	POST /submit    {email, channelName, services} -> {jobId}
//	GET  /job/{id}  -> {jobId, status, error, channelId, channelName, videos, aiReport}
type Handler struct {
	sim *Simulator
}

// NewHandler returns the processor routes backed by sim.
func NewHandler(sim *Simulator) http.Handler {
	h := &Handler{sim: sim}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /submit", h.Submit)
	mux.HandleFunc("GET /job/{jobId}", h.Job)
	return mux
}

// Submit handles POST /submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req gateway.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	id, err := h.sim.Submit(r.Context(), tracker.Params{
		ChannelName: req.ChannelName,
		Email:       req.Email,
		Services:    req.Services,
	})
	if err != nil {
		writeError(w, apperrors.HTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, gateway.SubmitResponse{JobID: id})
}

// Job handles GET /job/{jobId}
func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	resp, err := h.sim.Status(r.PathValue("jobId"))
	if err != nil {
		writeError(w, apperrors.HTTPStatus(err), "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, gateway.ErrorResponse{Error: message})
}
