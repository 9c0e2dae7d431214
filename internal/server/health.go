package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HandleHealth handles GET /health and GET /api/health. It reports session,
// database and system state, returning 503 when the database is unreachable.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	dbInfo := map[string]interface{}{"status": "ok"}
	if err := h.db.QuickCheck(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Database health check failed")
		dbInfo["status"] = "error"
		status = "unhealthy"
	} else {
		if stats, err := h.db.GetStats(); err == nil {
			dbInfo["size_bytes"] = stats.SizeBytes
			dbInfo["wal_size_bytes"] = stats.WALSizeBytes
		}
		if count, err := h.assessments.Count(); err == nil {
			dbInfo["assessments"] = count
		}
	}

	session := h.session.Snapshot()
	if status == "healthy" && !session.Loaded {
		status = "degraded"
	}

	response := map[string]interface{}{
		"status":    status,
		"uptime":    time.Since(h.startedAt).String(),
		"session":   session,
		"database":  dbInfo,
		"system":    systemStats(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, response)
}

// systemStats samples CPU and memory usage
func systemStats() map[string]interface{} {
	stats := map[string]interface{}{}

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		stats["cpu_percent"] = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats["memory_percent"] = vm.UsedPercent
		stats["memory_used_mb"] = float64(vm.Used) / 1024 / 1024
	}

	return stats
}
