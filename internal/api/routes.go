package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"snapbot/internal/api/handlers"
	"snapbot/internal/api/middleware"
	"snapbot/internal/websocket"
)

// Dependencies содержит зависимости служебного HTTP сервера
type Dependencies struct {
	Status         handlers.StatusSource
	Hub            *websocket.Hub
	AdminToken     string
	AllowedOrigins []string
	StartedAt      time.Time
	Logger         *zap.Logger
}

// SetupRoutes настраивает маршруты служебного сервера.
//
//	GET /health          - без авторизации
//	GET /api/v1/status   - ADMIN_TOKEN
//	GET /metrics         - ADMIN_TOKEN, prometheus
//	GET /ws/events       - ADMIN_TOKEN, поток событий бота
//
// Порядок middleware: Recovery, Logging, CORS, затем AdminAuth для защищенных маршрутов.
func SetupRoutes(deps *Dependencies) *mux.Router {
	if deps == nil {
		deps = &Dependencies{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	startedAt := deps.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	health := handlers.NewHealthHandler(deps.Status, startedAt)
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet, http.MethodOptions)

	admin := router.NewRoute().Subrouter()
	admin.Use(middleware.AdminAuth(deps.AdminToken))

	admin.HandleFunc("/api/v1/status", health.Status).Methods(http.MethodGet)
	admin.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if deps.Hub != nil {
		origins := websocket.NewOriginChecker(deps.AllowedOrigins)
		admin.Handle("/ws/events", deps.Hub.Handler(origins)).Methods(http.MethodGet)
	}

	return router
}
