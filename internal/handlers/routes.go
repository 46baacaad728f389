package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"slidepress/internal/services"
	"slidepress/internal/templates"
)

// SetupRoutes serves the rendered presentation in deployDir together with
// the build API and the live reload socket. hub may be nil.
func SetupRoutes(deployDir string, builds *BuildHandler, hub *services.ReloadHub) *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequests)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/builds", builds.ListBuilds).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}", builds.GetBuild).Methods(http.MethodGet)
	api.HandleFunc("/presentations", builds.ListPresentations).Methods(http.MethodGet)
	api.HandleFunc("/status", builds.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/schedule", builds.GetSchedule).Methods(http.MethodGet)

	if hub != nil {
		router.HandleFunc(templates.ReloadPath, hub.ServeWS)
	}

	router.PathPrefix("/").Handler(noCache(http.FileServer(http.Dir(deployDir))))
	return router
}

// noCache keeps browsers from showing a stale render after a reload
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		next.ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}
