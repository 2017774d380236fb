package handlers

import (
	"net/http"
	"time"

	"snapbot/pkg/utils"
)

// StatusSource - источник счетчиков для /api/v1/status
type StatusSource interface {
	ArmedJobs() int
	Accounts() int
	EventClients() int
}

// HealthResponse - ответ GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Timezone  string `json:"timezone"`
	Timestamp string `json:"timestamp"`
	ArmedJobs int    `json:"armedJobs"`
}

// StatusResponse - ответ GET /api/v1/status
type StatusResponse struct {
	HealthResponse
	Accounts     int `json:"accounts"`
	EventClients int `json:"eventClients"`
}

// HealthHandler отдает состояние процесса.
//
// Endpoints:
// - GET /health - без авторизации, для балансировщиков и docker healthcheck
// - GET /api/v1/status - с ADMIN_TOKEN, добавляет счетчики аккаунтов и подписчиков
type HealthHandler struct {
	source    StatusSource
	startedAt time.Time
	now       func() time.Time
}

// NewHealthHandler создает handler; source может быть nil
func NewHealthHandler(source StatusSource, startedAt time.Time) *HealthHandler {
	return &HealthHandler{source: source, startedAt: startedAt, now: time.Now}
}

// Health возвращает uptime, часовой пояс сервера и число взведенных заданий.
//
// Response 200 OK:
//
//	{
//	  "status": "ok",
//	  "uptime": "3d5h",
//	  "timezone": "UTC",
//	  "timestamp": "05-03-2024 14:30:00",
//	  "armedJobs": 4
//	}
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health())
}

// Status возвращает расширенные счетчики
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "NOT_READY", "status source is not configured")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		HealthResponse: h.health(),
		Accounts:       h.source.Accounts(),
		EventClients:   h.source.EventClients(),
	})
}

func (h *HealthHandler) health() HealthResponse {
	now := h.now()
	zone, _ := now.Zone()
	resp := HealthResponse{
		Status:    "ok",
		Uptime:    utils.FormatDuration(now.Sub(h.startedAt)),
		Timezone:  zone,
		Timestamp: now.Format(utils.PingLayout),
	}
	if h.source != nil {
		resp.ArmedJobs = h.source.ArmedJobs()
	}
	return resp
}
