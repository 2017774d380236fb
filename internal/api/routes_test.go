package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"snapbot/internal/websocket"
)

type stubStatus struct{}

func (stubStatus) ArmedJobs() int    { return 1 }
func (stubStatus) Accounts() int     { return 2 }
func (stubStatus) EventClients() int { return 0 }

func TestSetupRoutes(t *testing.T) {
	hub := websocket.NewHub(nil)
	router := SetupRoutes(&Dependencies{
		Status:     stubStatus{},
		Hub:        hub,
		AdminToken: "s3cret",
	})

	tests := []struct {
		name   string
		path   string
		token  string
		want   int
		inBody string
	}{
		{"health открыт", "/health", "", http.StatusOK, `"armedJobs":1`},
		{"status без токена", "/api/v1/status", "", http.StatusUnauthorized, ""},
		{"status с токеном", "/api/v1/status", "s3cret", http.StatusOK, `"accounts":2`},
		{"metrics без токена", "/metrics", "", http.StatusUnauthorized, ""},
		{"metrics с токеном", "/metrics", "s3cret", http.StatusOK, "go_goroutines"},
		{"ws без токена", "/ws/events", "", http.StatusUnauthorized, ""},
		{"неизвестный путь", "/api/v1/pairs", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.inBody != "" && !strings.Contains(w.Body.String(), tt.inBody) {
				t.Errorf("body не содержит %s: %s", tt.inBody, w.Body.String())
			}
		})
	}
}

func TestSetupRoutes_AdminDisabled(t *testing.T) {
	router := SetupRoutes(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
