package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/murmurlabs/murmur-core/internal/history"
	"github.com/murmurlabs/murmur-core/internal/speech"
)

type historyRecordResponse struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Text          string    `json:"text"`
	Provider      string    `json:"provider"`
	AudioFileName string    `json:"audio_file_name"`
}

type retranscribeResponse struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Text     string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// registerHistoryRoutes exposes the transcript log and the session timeline
// to local UIs. The API is read-mostly; retranscription is the only
// operation that invokes a backend.
func (r *Runtime) registerHistoryRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/history", r.handleHistoryList)
	mux.HandleFunc("GET /v1/history/{id}", r.handleHistoryGet)
	mux.HandleFunc("DELETE /v1/history/{id}", r.handleHistoryDelete)
	mux.HandleFunc("POST /v1/history/{id}/retranscribe", r.handleRetranscribe)
	mux.HandleFunc("GET /v1/sessions/{id}/events", r.handleSessionEvents)
}

func (r *Runtime) handleHistoryList(w http.ResponseWriter, req *http.Request) {
	records := r.history.GetAll()
	if raw := req.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		records = r.history.GetRecent(limit)
	}

	out := make([]historyRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordResponse(record))
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Runtime) handleHistoryGet(w http.ResponseWriter, req *http.Request) {
	record, ok := r.lookupRecord(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(record))
}

func (r *Runtime) handleHistoryDelete(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(req.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	if err := r.history.Delete(id); err != nil {
		r.logger.Error("history delete failed", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handleRetranscribe(w http.ResponseWriter, req *http.Request) {
	record, ok := r.lookupRecord(w, req)
	if !ok {
		return
	}

	provider := speech.Provider(req.URL.Query().Get("provider"))
	if provider == "" {
		provider = record.Provider
	}
	if !provider.Valid() {
		writeJSONError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	text, err := r.history.Retranscribe(req.Context(), record, provider, r.dispatcher)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, speech.ErrAudioFileMissing):
			status = http.StatusGone
		case errors.Is(err, speech.ErrConfiguration):
			status = http.StatusConflict
		case errors.Is(err, speech.ErrNoSpeech):
			status = http.StatusUnprocessableEntity
		}
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, retranscribeResponse{
		ID:       record.ID.String(),
		Provider: string(provider),
		Text:     text,
	})
}

func (r *Runtime) handleSessionEvents(w http.ResponseWriter, req *http.Request) {
	entries, err := r.events.ListSession(req.Context(), req.PathValue("id"), 0)
	if err != nil {
		r.logger.Error("event list failed", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to list session events")
		return
	}
	type eventResponse struct {
		Kind      string    `json:"kind"`
		Provider  string    `json:"provider"`
		Detail    string    `json:"detail,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]eventResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, eventResponse{
			Kind:      e.Kind,
			Provider:  e.Provider,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Runtime) lookupRecord(w http.ResponseWriter, req *http.Request) (history.Record, bool) {
	id, err := uuid.Parse(req.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid record id")
		return history.Record{}, false
	}
	record, ok := r.history.Get(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "record not found")
		return history.Record{}, false
	}
	return record, true
}

func toRecordResponse(record history.Record) historyRecordResponse {
	return historyRecordResponse{
		ID:            record.ID.String(),
		Timestamp:     record.Timestamp,
		Text:          record.Text,
		Provider:      string(record.Provider),
		AudioFileName: record.AudioFileName,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
