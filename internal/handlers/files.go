package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (h *Handler) fileList(c *gin.Context) {
	root := c.DefaultQuery("root", "gcodes")
	files, err := h.services.FlatList(c.Request.Context(), root)
	if err != nil {
		h.log.Errorw("file_list_failed", "root", root, "err", err)
		successResponse(c, []map[string]any{})
		return
	}
	successResponse(c, files)
}

func (h *Handler) fileDirectory(c *gin.Context) {
	path := c.DefaultQuery("path", "gcodes")
	dir, err := h.services.Directory(c.Request.Context(), path)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, dir)
}

func (h *Handler) fileUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "missing file field: "+err.Error())
		return
	}

	src, err := file.Open()
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "open upload: "+err.Error())
		return
	}
	defer func() { _ = src.Close() }()

	res, err := h.services.Upload(c.Request.Context(), file.Filename, src, file.Size)
	if err != nil {
		h.log.Errorw("file_upload_failed", "filename", file.Filename, "err", err)
		errorResponse(c, http.StatusInternalServerError, "upload failed: "+err.Error())
		return
	}
	successResponse(c, res)
}

func (h *Handler) fileDelete(c *gin.Context) {
	filename := strings.TrimPrefix(c.Param("filepath"), "/")
	if filename == "" {
		errorResponse(c, http.StatusBadRequest, "filename required")
		return
	}
	if err := h.services.Delete(c.Request.Context(), filename); err != nil {
		h.log.Errorw("file_delete_failed", "filename", filename, "err", err)
		errorResponse(c, http.StatusInternalServerError, "delete failed: "+err.Error())
		return
	}
	successResponse(c, "ok")
}

// configDownload serves the canned config files. Theme probes get an
// empty object instead of a 404 so dashboards stop retrying.
func (h *Handler) configDownload(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("filepath"), "/")
	if strings.Contains(name, ".theme") {
		successResponse(c, map[string]any{})
		return
	}
	if content, ok := h.services.ConfigFile(name); ok {
		c.String(http.StatusOK, content)
		return
	}
	errorResponse(c, http.StatusNotFound, "File not found")
}
