package handlers

import (
	"net/http"
	"strconv"

	"bambu_bridge/internal/repository"

	"github.com/gin-gonic/gin"
)

func historyFilter(limit, before, since, order string) repository.JobFilter {
	f := repository.JobFilter{Limit: 50, Descending: true}
	if v, err := strconv.Atoi(limit); err == nil && v > 0 {
		f.Limit = v
	}
	if v, err := strconv.ParseFloat(before, 64); err == nil {
		f.Before = v
	}
	if v, err := strconv.ParseFloat(since, 64); err == nil {
		f.Since = v
	}
	if order == "asc" {
		f.Descending = false
	}
	return f
}

func (h *Handler) historyList(c *gin.Context) {
	f := historyFilter(
		c.Query("limit"),
		c.Query("before"),
		c.Query("since"),
		c.DefaultQuery("order", "desc"),
	)
	result, err := h.services.History.List(c.Request.Context(), f)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, result)
}

func (h *Handler) historyTotals(c *gin.Context) {
	totals, err := h.services.Totals(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, map[string]any{"job_totals": totals})
}
