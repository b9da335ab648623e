package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/config"
	"github.com/mcdev12/osce/go/internal/exam"
	"github.com/mcdev12/osce/go/internal/rotation"
	"github.com/mcdev12/osce/go/internal/stations"
)

const maxBodyBytes = 1 << 20

// ExamHandler serves the REST control API.
type ExamHandler struct {
	service *exam.Service
	hub     *Hub
}

func NewExamHandler(service *exam.Service, hub *Hub) *ExamHandler {
	return &ExamHandler{service: service, hub: hub}
}

// RegisterRoutes registers the REST and websocket routes with mux.
func (h *ExamHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/exam", h.HandleGetExam)
	mux.HandleFunc("POST /api/exam/start", h.HandleStart)
	mux.HandleFunc("POST /api/exam/pause", h.control((*exam.Runner).Pause))
	mux.HandleFunc("POST /api/exam/resume", h.control((*exam.Runner).Resume))
	mux.HandleFunc("POST /api/exam/toggle", h.control((*exam.Runner).TogglePause))
	mux.HandleFunc("POST /api/exam/skip", h.control((*exam.Runner).SkipPhase))
	mux.HandleFunc("POST /api/exam/restart", h.control((*exam.Runner).RestartRound))
	mux.HandleFunc("POST /api/exam/stop", h.control((*exam.Runner).StopExam))
	mux.HandleFunc("POST /api/exam/restore", h.control((*exam.Runner).Restore))
	mux.HandleFunc("POST /api/exam/discard", h.HandleDiscard)
	mux.HandleFunc("GET /api/recovery", h.HandleRecovery)
	mux.HandleFunc("POST /api/announcements/mute", h.HandleMute)

	mux.HandleFunc("GET /api/config", h.HandleGetConfig)
	mux.HandleFunc("PUT /api/config", h.HandlePutConfig)
	mux.HandleFunc("POST /api/config/save", h.HandleSaveConfig)

	mux.HandleFunc("GET /api/stations", h.HandleListStations)
	mux.HandleFunc("POST /api/stations", h.HandleAddStation)
	mux.HandleFunc("PATCH /api/stations/{id}", h.HandleUpdateStation)
	mux.HandleFunc("DELETE /api/stations/{id}", h.HandleRemoveStation)
	mux.HandleFunc("POST /api/stations/reorder", h.HandleReorderStations)

	if h.hub != nil {
		mux.HandleFunc("GET /ws/exam", h.hub.ServeWS)
		mux.HandleFunc("GET /ws/stats", h.HandleHubStats)
	}
}

// HandleGetExam handles GET /api/exam
func (h *ExamHandler) HandleGetExam(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r)
}

// HandleStart handles POST /api/exam/start
func (h *ExamHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.StartExam(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.writeView(w, r)
}

// control adapts a runner command to a handler that replies with the new view.
func (h *ExamHandler) control(cmd func(*exam.Runner, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cmd(h.service.Runner(), r.Context()); err != nil {
			writeError(w, err)
			return
		}
		h.writeView(w, r)
	}
}

// HandleDiscard handles POST /api/exam/discard
func (h *ExamHandler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Runner().Discard(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recoveryResponse struct {
	Available bool `json:"available"`
}

// HandleRecovery handles GET /api/recovery
func (h *ExamHandler) HandleRecovery(w http.ResponseWriter, r *http.Request) {
	ok, err := h.service.Runner().RecoveryAvailable(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recoveryResponse{Available: ok})
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

// HandleMute handles POST /api/announcements/mute
func (h *ExamHandler) HandleMute(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.service.SetMuted(req.Muted)
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetConfig handles GET /api/config. ?format=yaml selects YAML.
func (h *ExamHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	format := config.FormatJSON
	contentType := "application/json"
	if strings.EqualFold(r.URL.Query().Get("format"), "yaml") {
		format = config.FormatYAML
		contentType = "application/yaml"
	}
	data, err := h.service.ExportSettings(format)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandlePutConfig handles PUT /api/config with a JSON or YAML settings document.
func (h *ExamHandler) HandlePutConfig(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	format := config.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = config.FormatYAML
	}
	if err := h.service.ImportSettings(data, format); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Settings())
}

// HandleSaveConfig handles POST /api/config/save
func (h *ExamHandler) HandleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SaveSettings(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListStations handles GET /api/stations
func (h *ExamHandler) HandleListStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Stations())
}

type addStationRequest struct {
	Name            string `json:"name"`
	ActivityMinutes int    `json:"activity_minutes"`
	FeedbackMinutes int    `json:"feedback_minutes"`
}

// HandleAddStation handles POST /api/stations
func (h *ExamHandler) HandleAddStation(w http.ResponseWriter, r *http.Request) {
	var req addStationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := h.service.AddStation(req.Name, req.ActivityMinutes, req.FeedbackMinutes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// HandleUpdateStation handles PATCH /api/stations/{id}
func (h *ExamHandler) HandleUpdateStation(w http.ResponseWriter, r *http.Request) {
	id, ok := stationID(w, r)
	if !ok {
		return
	}
	var u stations.Update
	if !decodeBody(w, r, &u) {
		return
	}
	st, err := h.service.UpdateStation(id, u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRemoveStation handles DELETE /api/stations/{id}
func (h *ExamHandler) HandleRemoveStation(w http.ResponseWriter, r *http.Request) {
	id, ok := stationID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveStation(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// HandleReorderStations handles POST /api/stations/reorder
func (h *ExamHandler) HandleReorderStations(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.service.ReorderStations(req.From, req.To); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Stations())
}

// HandleHubStats handles GET /ws/stats
func (h *ExamHandler) HandleHubStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}

func (h *ExamHandler) writeView(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Runner().View(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func stationID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid station id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rotation.ErrAlreadyRunning), errors.Is(err, stations.ErrLastStation):
		return http.StatusConflict
	case errors.Is(err, rotation.ErrStateCorruption):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exam.ErrNoRecovery), errors.Is(err, stations.ErrStationNotFound):
		return http.StatusNotFound
	case errors.Is(err, rotation.ErrConfiguration),
		errors.Is(err, config.ErrInvalidSettings),
		errors.Is(err, stations.ErrInvalidStation),
		errors.Is(err, stations.ErrInvalidExport):
		return http.StatusBadRequest
	case errors.Is(err, exam.ErrRunnerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
