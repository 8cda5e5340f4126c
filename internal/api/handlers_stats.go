package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handlePaginationStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "pagination stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"window":      s.cfg.StatsWindow.String(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.stats.Snapshot(),
	})
}
