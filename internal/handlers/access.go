package handlers

import (
	"errors"
	"net/http"

	"bambu_bridge/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) oneshotToken(c *gin.Context) {
	token, expires := h.services.OneshotToken()
	successResponse(c, map[string]any{"token": token, "expires": expires})
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	token, err := h.services.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidPassword) {
			errorResponse(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, map[string]any{
		"username": req.Username,
		"token":    token,
		"source":   "moonraker",
		"action":   "user_logged_in",
	})
}

func (h *Handler) createUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	id, err := h.services.CreateUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPassword) {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, map[string]any{
		"id":       id,
		"username": req.Username,
		"action":   "user_created",
	})
}
