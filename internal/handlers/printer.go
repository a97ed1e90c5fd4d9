package handlers

import (
	"errors"
	"net/http"

	"bambu_bridge/internal/bambu"

	"github.com/gin-gonic/gin"
)

// controlError maps publish and validation failures to HTTP responses.
func (h *Handler) controlError(c *gin.Context, op string, err error) {
	var verr *bambu.ValidationError
	switch {
	case errors.As(err, &verr):
		errorResponse(c, verr.Code, verr.Message)
	case errors.Is(err, bambu.ErrNotConnected):
		errorResponse(c, http.StatusServiceUnavailable, "printer not connected")
	default:
		h.log.Errorw("printer_control_failed", "op", op, "err", err)
		errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}

type startRequest struct {
	Filename string `json:"filename"`
}

func (h *Handler) printStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if err := h.services.StartPrint(c.Request.Context(), req.Filename); err != nil {
		h.controlError(c, "start", err)
		return
	}
	successResponse(c, "ok")
}

func (h *Handler) printPause(c *gin.Context) {
	if err := h.services.Pause(c.Request.Context()); err != nil {
		h.controlError(c, "pause", err)
		return
	}
	successResponse(c, "ok")
}

func (h *Handler) printResume(c *gin.Context) {
	if err := h.services.Resume(c.Request.Context()); err != nil {
		h.controlError(c, "resume", err)
		return
	}
	successResponse(c, "ok")
}

func (h *Handler) printCancel(c *gin.Context) {
	if err := h.services.Cancel(c.Request.Context()); err != nil {
		h.controlError(c, "cancel", err)
		return
	}
	successResponse(c, "ok")
}
