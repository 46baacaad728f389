package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"slidepress/internal/models"
	"slidepress/internal/services"
)

// BuildHandler handles HTTP requests for the build registry and the state
// of the last render
type BuildHandler struct {
	registry *services.BuildRegistry
	state    *services.RenderState
}

// NewBuildHandler creates a new build handler. registry may be nil when no
// database is configured
func NewBuildHandler(registry *services.BuildRegistry, state *services.RenderState) *BuildHandler {
	return &BuildHandler{
		registry: registry,
		state:    state,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// ListBuilds returns the most recent builds
// GET /api/builds?source=...&limit=...
func (bh *BuildHandler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	if bh.registry == nil {
		http.Error(w, "Build registry not available", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	builds, err := bh.registry.ListBuilds(r.URL.Query().Get("source"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Always return an array, even if empty
	if builds == nil {
		builds = []*models.BuildRecord{}
	}
	writeJSON(w, http.StatusOK, builds)
}

// GetBuild returns a specific build
// GET /api/builds/{id}
func (bh *BuildHandler) GetBuild(w http.ResponseWriter, r *http.Request) {
	if bh.registry == nil {
		http.Error(w, "Build registry not available", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "Build ID is required", http.StatusBadRequest)
		return
	}

	build, err := bh.registry.GetBuild(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, build)
}

// ListPresentations returns the build summary per source file
// GET /api/presentations
func (bh *BuildHandler) ListPresentations(w http.ResponseWriter, r *http.Request) {
	if bh.registry == nil {
		http.Error(w, "Build registry not available", http.StatusServiceUnavailable)
		return
	}

	records, err := bh.registry.ListPresentations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*models.PresentationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetStatus returns the summary of the last render
// GET /api/status
func (bh *BuildHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	summary, ok := bh.state.Get()
	if !ok {
		http.Error(w, "No render finished yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ScheduleResponse is the timing of the last successful render
type ScheduleResponse struct {
	PresentationTime float64 `json:"presentationTime"`
	Slides           any     `json:"slides"`
}

// GetSchedule returns the time slices of the last render
// GET /api/schedule
func (bh *BuildHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	summary, ok := bh.state.Get()
	if !ok || summary.Schedule == nil {
		http.Error(w, "No schedule available", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ScheduleResponse{
		PresentationTime: summary.TotalTime,
		Slides:           summary.Schedule,
	})
}
