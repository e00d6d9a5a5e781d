package users

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"newslens/internal/auth"
	"newslens/internal/events"
	"newslens/pkg/models"
)

type Handler struct {
	Repo      *Repo
	Publisher events.Publisher
	Logger    zerolog.Logger
}

func NewHandler(repo *Repo, pub events.Publisher, logger zerolog.Logger) *Handler {
	if pub == nil {
		pub = events.Discard{}
	}
	return &Handler{Repo: repo, Publisher: pub, Logger: logger.With().Str("component", "users").Logger()}
}

// RegisterRoutes mounts the user routes. rg must already require auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/preferences", h.updatePreferences)
	rg.GET("/history", h.history)
	rg.POST("/interaction", h.trackInteraction)
	rg.POST("/toggle-interaction", h.toggleInteraction)
	rg.GET("/stats", h.stats)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func userID(c *gin.Context) (string, bool) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.UserID, true
}

type preferencesReq struct {
	Topics     []string `json:"topics"`
	Sources    []string `json:"sources"`
	BiasFilter *string  `json:"biasFilter"`
}

func (h *Handler) updatePreferences(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req preferencesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	var patch PreferencesPatch
	if req.Topics != nil {
		patch.Topics = make([]models.Category, 0, len(req.Topics))
		for _, t := range req.Topics {
			cat, ok := models.ParseCategory(t)
			if !ok {
				fail(c, http.StatusBadRequest, "unknown topic: "+t)
				return
			}
			patch.Topics = append(patch.Topics, cat)
		}
	}
	if req.Sources != nil {
		patch.Sources = make([]string, 0, len(req.Sources))
		for _, s := range req.Sources {
			if s = strings.TrimSpace(s); s != "" {
				patch.Sources = append(patch.Sources, s)
			}
		}
	}
	if req.BiasFilter != nil {
		bf := strings.ToLower(strings.TrimSpace(*req.BiasFilter))
		if _, ok := models.ParseBiasLabel(bf); !ok && bf != "all" {
			fail(c, http.StatusBadRequest, "biasFilter must be all, left, center, right or neutral")
			return
		}
		patch.BiasFilter = &bf
	}

	prefs, err := h.Repo.UpdatePreferences(c.Request.Context(), uid, patch)
	if err != nil {
		h.Logger.Error().Err(err).Str("user_id", uid).Msg("update preferences")
		fail(c, http.StatusInternalServerError, "update preferences failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "preferences updated successfully",
		"data":    h.interactionState(c.Request.Context(), uid, gin.H{"preferences": prefs}),
	})
}

// interactionState adds the liked and saved id lists to out.
func (h *Handler) interactionState(ctx context.Context, uid string, out gin.H) gin.H {
	for key, kind := range map[string]models.InteractionKind{
		"likedArticles": models.InteractionLike,
		"savedArticles": models.InteractionSave,
	} {
		ids, err := h.Repo.InteractionIDs(ctx, uid, kind)
		if err != nil {
			h.Logger.Warn().Err(err).Str("kind", string(kind)).Msg("list interactions")
			ids = []string{}
		}
		out[key] = ids
	}
	return out
}

func (h *Handler) history(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	entries, err := h.Repo.History(c.Request.Context(), uid)
	if err != nil {
		h.Logger.Error().Err(err).Str("user_id", uid).Msg("history")
		fail(c, http.StatusInternalServerError, "history failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}

type trackReq struct {
	ArticleID   string `json:"articleId"`
	Interaction string `json:"interaction"`
}

// trackInteraction only records reads; likes and saves go through
// toggle-interaction.
func (h *Handler) trackInteraction(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req trackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.ArticleID = strings.TrimSpace(req.ArticleID)
	if req.Interaction != "read" {
		fail(c, http.StatusBadRequest, "only read interactions are tracked here; use /toggle-interaction for likes and saves")
		return
	}
	if !h.articleExists(c, req.ArticleID) {
		return
	}

	if err := h.Repo.RecordRead(c.Request.Context(), uid, req.ArticleID); err != nil {
		h.Logger.Error().Err(err).Str("user_id", uid).Msg("record read")
		fail(c, http.StatusInternalServerError, "track interaction failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "interaction tracked successfully"})
}

type toggleReq struct {
	ArticleID       string `json:"articleId"`
	InteractionType string `json:"interactionType"`
}

func (h *Handler) toggleInteraction(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req toggleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	req.ArticleID = strings.TrimSpace(req.ArticleID)
	kind := models.InteractionKind(strings.ToLower(strings.TrimSpace(req.InteractionType)))
	if kind != models.InteractionLike && kind != models.InteractionSave {
		fail(c, http.StatusBadRequest, "invalid interaction type")
		return
	}
	if !h.articleExists(c, req.ArticleID) {
		return
	}

	active, err := h.Repo.ToggleInteraction(c.Request.Context(), uid, req.ArticleID, kind)
	if err != nil {
		h.Logger.Error().Err(err).Str("user_id", uid).Msg("toggle interaction")
		fail(c, http.StatusInternalServerError, "toggle interaction failed")
		return
	}

	if err := h.Publisher.Publish(c.Request.Context(), events.InteractionToggled(uid, req.ArticleID, kind, active)); err != nil {
		h.Logger.Warn().Err(err).Msg("publish interaction")
	}

	out := h.interactionState(c.Request.Context(), uid, gin.H{
		"success": true,
		"message": "interaction toggled successfully",
		"active":  active,
	})
	c.JSON(http.StatusOK, out)
}

func (h *Handler) articleExists(c *gin.Context, id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		fail(c, http.StatusBadRequest, "articleId required")
		return false
	}
	if h.Repo.Articles == nil {
		return true
	}
	a, err := h.Repo.Articles.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "article lookup failed")
		return false
	}
	if a == nil {
		fail(c, http.StatusNotFound, "article not found")
		return false
	}
	return true
}

func (h *Handler) stats(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	s, err := h.Repo.Stats(c.Request.Context(), uid)
	if err != nil {
		h.Logger.Error().Err(err).Str("user_id", uid).Msg("stats")
		fail(c, http.StatusInternalServerError, "stats failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s})
}
