package api

import (
	"net/http"
	"time"

	"github.com/openvault/archivist/internal/api/respond"
)

// CheckHealth handles GET /api/health.
// Always returns 200; body reports healthy/unhealthy based on store reachability.
func (s *Server) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if err := s.st.Ping(r.Context()); err != nil {
		status = "unhealthy"
	}
	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	respond.WriteJSON(w, http.StatusOK, response)
}
