package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const bridgeVersion = "v0.1.0-bambu-bridge"

func successResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"result": data})
}

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": gin.H{"code": code, "message": message}})
}

func (h *Handler) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// serverInfoResult is shared by the HTTP endpoint and the RPC method.
// Klippy always reads ready: the bridge owns the device session and there
// is no separate firmware process to wait for.
func (h *Handler) serverInfoResult() map[string]any {
	return map[string]any{
		"state":        "ready",
		"klippy_state": "ready",
		"components": []string{
			"printer",
			"websocket",
			"database",
			"file_manager",
			"webcams",
			"history",
			"job_queue",
		},
		"version":     bridgeVersion,
		"api_version": []int{1, 0, 0},
	}
}

func (h *Handler) serverInfo(c *gin.Context) {
	successResponse(c, h.serverInfoResult())
}

func (h *Handler) printerInfoResult() map[string]any {
	return map[string]any{
		"state":            "ready",
		"hostname":         "bambu-bridge",
		"model":            "Bambu",
		"firmware_version": "unknown",
		"software_version": bridgeVersion,
	}
}

func (h *Handler) printerInfo(c *gin.Context) {
	successResponse(c, h.printerInfoResult())
}

func (h *Handler) temperatureStore(c *gin.Context) {
	include := c.Query("include_monitors") == "true"
	successResponse(c, h.store.GetTemperatureHistory(include))
}

func (h *Handler) objectsList(c *gin.Context) {
	successResponse(c, map[string]any{"objects": h.store.ObjectNames()})
}

// objectsQueryResult resolves the requested object names against the
// store. Requested field filters are ignored; whole objects come back,
// which the dashboards accept.
func (h *Handler) objectsQueryResult(requested map[string]any) map[string]any {
	status := map[string]any{}
	for name := range requested {
		if obj, ok := h.store.GetObject(name); ok {
			status[name] = obj
		}
	}
	return map[string]any{
		"status":    status,
		"eventtime": h.store.EventTime(),
	}
}

// objectsQuery handles the HTTP form, where the requested objects arrive
// as a JSON map in the "objects" query parameter.
func (h *Handler) objectsQuery(c *gin.Context) {
	var requested map[string]any
	for key, values := range c.Request.URL.Query() {
		if key != "objects" && key != "objects:json" {
			continue
		}
		if len(values) > 0 {
			_ = json.Unmarshal([]byte(values[0]), &requested)
		}
		break
	}
	if requested == nil {
		successResponse(c, map[string]any{"status": map[string]any{}, "eventtime": h.store.EventTime()})
		return
	}
	successResponse(c, h.objectsQueryResult(requested))
}
