package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tradekit/bandtrack/internal/api/handlers"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	dayHandler *handlers.DayHandler,
	predictionHandler *handlers.PredictionHandler,
	simulationHandler *handlers.SimulationHandler,
	schedulerHandler *handlers.SchedulerHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Day endpoints
	api.HandleFunc("/days", dayHandler.ListDays).Methods("GET")
	api.HandleFunc("/days/{date}", dayHandler.GetDay).Methods("GET")
	api.HandleFunc("/days/{date}/band", predictionHandler.PublishBand).Methods("POST")
	api.HandleFunc("/capture", dayHandler.Capture).Methods("POST")
	api.HandleFunc("/backfill", dayHandler.Backfill).Methods("POST")

	// Prediction endpoints
	api.HandleFunc("/predictions/{date}", predictionHandler.GetPredictions).Methods("GET")
	api.HandleFunc("/predictions/{date}", predictionHandler.Generate).Methods("POST")
	api.HandleFunc("/predictions/{date}/actuals", predictionHandler.BackfillActuals).Methods("POST")

	// Simulation
	api.HandleFunc("/simulate", simulationHandler.Simulate).Methods("POST")

	// Scheduler
	api.HandleFunc("/scheduler/status", schedulerHandler.Status).Methods("GET")
	api.HandleFunc("/scheduler/trigger", schedulerHandler.Trigger).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "bandtrack-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
