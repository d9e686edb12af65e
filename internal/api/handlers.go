package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devfleet/devfleet/internal/constants"
	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/logs"
	"github.com/devfleet/devfleet/internal/supervisor"
)

// APIVersion is the control API version reported by GET /status
const APIVersion = "v1"

// Handlers holds the API request handlers and their collaborators
type Handlers struct {
	sup       *supervisor.Supervisor
	streamer  *logs.Streamer
	startedAt time.Time
}

// NewHandlers creates API handlers backed by the given supervisor and
// log streamer
func NewHandlers(sup *supervisor.Supervisor, streamer *logs.Streamer) *Handlers {
	return &Handlers{
		sup:       sup,
		streamer:  streamer,
		startedAt: time.Now(),
	}
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:        "running",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Services:      len(h.sup.List()),
		APIVersion:    APIVersion,
	})
}

// ListServices handles GET /api/v1/services
func (h *Handlers) ListServices(w http.ResponseWriter, r *http.Request) {
	infos := h.sup.List()
	resp := ServiceListResponse{Services: make([]ServiceResponse, 0, len(infos))}
	for _, info := range infos {
		resp.Services = append(resp.Services, newServiceResponse(info))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetService handles GET /api/v1/services/{name}
func (h *Handlers) GetService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, err := h.sup.Status(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, newServiceResponse(info))
}

// StartService handles POST /api/v1/services/{name}/start. The service
// must already be registered; starting an unknown name is not supported
// through the API because the manifest owns service configuration.
func (h *Handlers) StartService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.sup.StartExisting(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrServiceNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	info, _ := h.sup.Status(name)
	writeJSON(w, http.StatusOK, newServiceResponse(info))
}

// StopService handles POST /api/v1/services/{name}/stop
func (h *Handlers) StopService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := h.sup.Status(name); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if err := h.sup.Stop(name, force); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	info, _ := h.sup.Status(name)
	writeJSON(w, http.StatusOK, newServiceResponse(info))
}

// RestartService handles POST /api/v1/services/{name}/restart
func (h *Handlers) RestartService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.sup.Restart(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrServiceNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	info, _ := h.sup.Status(name)
	writeJSON(w, http.StatusOK, newServiceResponse(info))
}

// GetLogs handles GET /api/v1/logs. It renders records from the shared
// stream as newline-delimited JSON. With follow=true the response streams
// until the client disconnects.
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	cfg := domain.StreamConfig{
		Lines:   constants.DefaultLogLimit,
		Format:  domain.FormatJSON,
		Service: r.URL.Query().Get("service"),
		Pattern: r.URL.Query().Get("pattern"),
		Follow:  r.URL.Query().Get("follow") == "true",
	}

	if v := r.URL.Query().Get("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Lines = n
		}
	}
	if v := r.URL.Query().Get("level"); v != "" {
		if level, ok := domain.ParseLevel(v); ok {
			cfg.MinLevel = &level
		}
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	out := newFlushWriter(w)
	if err := h.streamer.Stream(r.Context(), cfg, out); err != nil {
		// Headers are already written; the stream just ends.
		return
	}
}

// flushWriter flushes after every write so followed logs reach the client
// promptly
type flushWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	flusher, _ := w.(http.Flusher)
	return &flushWriter{w: w, flusher: flusher}
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if f.flusher != nil {
		f.flusher.Flush()
	}
	return n, err
}
