package api

import (
	"encoding/json"
	"net/http"
)

// handleHealth is a trivial liveness probe.
func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleGetState reports room occupancy and driver telemetry (C11): the
// same Stats the Prometheus gauges are fed from, plus the current roster.
func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	stats := h.rm.Stats()
	roster := h.rm.Roster()

	writeJSON(w, map[string]interface{}{
		"tick":               stats.Tick,
		"playersConnected":   stats.PlayersConnected,
		"rateLimitedDrops":   stats.RateLimitedDrops,
		"rewindHistoryMiss":  stats.RewindHistoryMiss,
		"clampedShots":       stats.ClampedShots,
		"rewindDepthP50":     stats.RewindDepthP50,
		"rewindDepthP95":     stats.RewindDepthP95,
		"heldInputShotSkips": stats.HeldInputShotSkips,
		"roster":             roster,
	})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
