package handlers

import (
	"errors"
	"net/http"

	"bambu_bridge/internal/repository"

	"github.com/gin-gonic/gin"
)

func (h *Handler) databaseGet(c *gin.Context) {
	namespace := c.Query("namespace")
	if namespace == "" {
		errorResponse(c, http.StatusBadRequest, "namespace required")
		return
	}
	key := c.Query("key")

	value, err := h.services.GetItem(c.Request.Context(), namespace, key)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, databaseItem(namespace, key, value))
}

type databaseRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
}

func (h *Handler) databasePost(c *gin.Context) {
	var req databaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Namespace == "" {
		errorResponse(c, http.StatusBadRequest, "namespace required")
		return
	}

	value, err := h.services.PostItem(c.Request.Context(), req.Namespace, req.Key, req.Value)
	if err != nil {
		if errors.Is(err, repository.ErrNamespaceValue) {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, databaseItem(req.Namespace, req.Key, value))
}

func (h *Handler) databaseDelete(c *gin.Context) {
	namespace := c.Query("namespace")
	key := c.Query("key")
	if namespace == "" || key == "" {
		errorResponse(c, http.StatusBadRequest, "namespace and key required")
		return
	}

	value, err := h.services.DeleteItem(c.Request.Context(), namespace, key)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, databaseItem(namespace, key, value))
}

func (h *Handler) databaseList(c *gin.Context) {
	namespaces, err := h.services.ListNamespaces(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, map[string]any{"namespaces": namespaces, "backups": []string{}})
}

// databaseItem builds the namespace/key/value result envelope. An empty
// key is reported as null to match the protocol.
func databaseItem(namespace, key string, value any) map[string]any {
	item := map[string]any{"namespace": namespace, "value": value}
	if key == "" {
		item["key"] = nil
	} else {
		item["key"] = key
	}
	return item
}
