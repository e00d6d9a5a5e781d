package scheduler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	Scheduler   *Scheduler
	RequireAuth gin.HandlerFunc
	Logger      zerolog.Logger
}

func NewHandler(s *Scheduler, requireAuth gin.HandlerFunc, logger zerolog.Logger) *Handler {
	return &Handler{Scheduler: s, RequireAuth: requireAuth, Logger: logger.With().Str("component", "scheduler_http").Logger()}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", h.status)

	rg.POST("/start", h.RequireAuth, h.start)
	rg.POST("/stop", h.RequireAuth, h.stop)
	rg.POST("/fetch-now", h.RequireAuth, h.fetchNow)
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.Scheduler.Status()})
}

func (h *Handler) start(c *gin.Context) {
	if err := h.Scheduler.Start(); err != nil {
		h.Logger.Error().Err(err).Msg("start scheduler")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to start scheduler"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "News scheduler started", "data": h.Scheduler.Status()})
}

func (h *Handler) stop(c *gin.Context) {
	h.Scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "News scheduler stopped", "data": h.Scheduler.Status()})
}

func (h *Handler) fetchNow(c *gin.Context) {
	n, err := h.Scheduler.ManualFetch(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("manual fetch")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "manual fetch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Fetched " + strconv.Itoa(n) + " new articles",
		"data":    gin.H{"count": n},
	})
}
