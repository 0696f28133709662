package rest

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"voicefeedback/internal/platform/logger"
	"voicefeedback/internal/service"
	"voicefeedback/internal/transport/rest/handler"
	"voicefeedback/internal/transport/rest/middleware"
	"voicefeedback/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService      *service.AuthService
	SelectionService *service.SelectionService
	ActivationLogger *service.ActivationLogger
	WSHub            *ws.Hub
	RequestTimeout   time.Duration
	Log              *logger.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	evaluationHandler := handler.NewEvaluationHandler(c.SelectionService, c.ActivationLogger, c.RequestTimeout, c.Log)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.Log)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/token", authHandler.Token).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/businesses/{businessId}/activations", wsHandler.ActivationsWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Orchestrator routes (require service auth)
	serviceRoutes := v1.NewRoute().Subrouter()
	serviceRoutes.Use(authMW.RequireService)

	serviceRoutes.HandleFunc("/businesses/{businessId}/evaluations", evaluationHandler.Evaluate).Methods("POST", "OPTIONS")
	serviceRoutes.HandleFunc("/evaluations/{evaluationId}/asked", evaluationHandler.MarkAsked).Methods("POST", "OPTIONS")
	serviceRoutes.HandleFunc("/evaluations/{evaluationId}/activations", evaluationHandler.Activations).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
