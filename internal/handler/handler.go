// Package handler exposes the job API over HTTP.
package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ytfetch/ytfetch/internal/download"
	"github.com/ytfetch/ytfetch/internal/postproc"
	"github.com/ytfetch/ytfetch/internal/ws"
)

// Handler binds the download service to the HTTP surface.
type Handler struct {
	service *download.Service
	hub     *ws.Hub
}

func New(service *download.Service, hub *ws.Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

// Register mounts all routes on the router.
func (h *Handler) Register(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/inspect", h.Inspect)
		api.POST("/downloads", h.StartDownload)
		api.GET("/downloads", h.ListDownloads)
		api.GET("/downloads/:id", h.GetDownload)
		api.GET("/downloads/:id/file", h.ServeFile)
	}
	router.GET("/ws", h.hub.ServeWS)
}

type inspectRequest struct {
	URL string `json:"url" binding:"required"`
}

// Inspect resolves metadata for a URL without creating a job.
func (h *Handler) Inspect(c *gin.Context) {
	var req inspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	info, err := h.service.Inspect(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

type downloadRequest struct {
	URL       string `json:"url" binding:"required"`
	Format    string `json:"format"`
	AudioOnly bool   `json:"audio_only"`
}

// StartDownload creates a job and returns its id immediately.
func (h *Handler) StartDownload(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	id, err := h.service.Submit(req.URL, download.SubmitOptions{
		Format:    req.Format,
		AudioOnly: req.AudioOnly,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

// ListDownloads returns snapshots of all jobs.
func (h *Handler) ListDownloads(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Jobs())
}

// GetDownload returns one job snapshot.
func (h *Handler) GetDownload(c *gin.Context) {
	job, found := h.service.Job(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ServeFile streams the finished artifact as an attachment. The filename
// in the disposition header is percent-encoded so titles survive
// non-ASCII characters.
func (h *Handler) ServeFile(c *gin.Context) {
	job, found := h.service.Job(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.FinalFilepath == "" {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("job is %s, no file available", job.Status)})
		return
	}

	encoded := postproc.HeaderFilename(job.FinalFilepath)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", encoded))
	c.File(job.FinalFilepath)
}
