package articles

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"newslens/internal/auth"
	"newslens/pkg/models"
)

const (
	defaultPageSize = 20
	refreshTarget   = 30
)

// Readers is the slice of the user store the news routes need.
type Readers interface {
	Preferences(ctx context.Context, userID string) (models.Preferences, error)
	RecordRead(ctx context.Context, userID, articleID string) error
}

// Refresher runs an on-demand ingestion.
type Refresher interface {
	FetchAndIngest(ctx context.Context, categories []models.Category, targetTotal int) []models.Article
}

type Handler struct {
	Repo        *Repo
	Readers     Readers
	Refresher   Refresher
	RequireAuth gin.HandlerFunc
	Logger      zerolog.Logger
}

func NewHandler(repo *Repo, readers Readers, refresher Refresher, requireAuth gin.HandlerFunc, logger zerolog.Logger) *Handler {
	return &Handler{
		Repo:        repo,
		Readers:     readers,
		Refresher:   refresher,
		RequireAuth: requireAuth,
		Logger:      logger.With().Str("component", "news").Logger(),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	// public
	rg.GET("/categories", h.categories)
	rg.GET("/sources", h.sources)
	rg.GET("/bias-stats", h.biasStats)
	rg.GET("/preview", h.preview)

	// protected
	rg.GET("/feed", h.RequireAuth, h.feed)
	rg.GET("/article/:id", h.RequireAuth, h.getByID)
	rg.POST("/refresh", h.RequireAuth, h.refresh)
	rg.GET("/refresh", h.RequireAuth, h.refresh)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func (h *Handler) categories(c *gin.Context) {
	cats, err := h.Repo.DistinctCategories(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("distinct categories")
		fail(c, http.StatusInternalServerError, "categories failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cats})
}

func (h *Handler) sources(c *gin.Context) {
	srcs, err := h.Repo.DistinctSources(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("distinct sources")
		fail(c, http.StatusInternalServerError, "sources failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": srcs})
}

type biasStat struct {
	Label models.BiasLabel `json:"label"`
	Count int              `json:"count"`
}

func (h *Handler) biasStats(c *gin.Context) {
	counts, err := h.Repo.CountByBiasLabel(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("count by bias")
		fail(c, http.StatusInternalServerError, "bias stats failed")
		return
	}

	out := make([]biasStat, 0, len(models.AllBiasLabels))
	for _, l := range models.AllBiasLabels {
		out = append(out, biasStat{Label: l, Count: counts[l]})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// preview is the anonymous landing page: first page only, no personalization.
func (h *Handler) preview(c *gin.Context) {
	limit := parseInt(c.Query("limit"), defaultPageSize)
	if limit <= 0 || limit > defaultPageSize {
		limit = defaultPageSize
	}
	h.respondPage(c, ListQuery{Limit: limit}, 1)
}

func (h *Handler) feed(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	page := parseInt(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := parseInt(c.Query("limit"), defaultPageSize)
	if limit <= 0 || limit > 100 {
		limit = defaultPageSize
	}

	q := ListQuery{
		Bias:   c.Query("bias"),
		Source: c.Query("source"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	cats, explicit := parseCategories(c.Query("category"))
	if !explicit || isAll(q.Bias) {
		prefs := h.preferences(c.Request.Context(), claims)
		if !explicit {
			cats = prefs.Topics
			if len(cats) == 0 {
				cats = []models.Category{models.CategoryTechnology, models.CategoryPolitics}
			}
		}
		if isAll(q.Bias) {
			q.Bias = prefs.BiasFilter
		}
	}
	q.Categories = cats

	h.respondPage(c, q, page)
}

func (h *Handler) preferences(ctx context.Context, claims *auth.Claims) models.Preferences {
	if h.Readers == nil || claims == nil {
		return models.DefaultPreferences()
	}
	p, err := h.Readers.Preferences(ctx, claims.UserID)
	if err != nil {
		h.Logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("load preferences")
		return models.DefaultPreferences()
	}
	return p
}

func (h *Handler) respondPage(c *gin.Context, q ListQuery, page int) {
	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		h.Logger.Error().Err(err).Msg("count feed")
		fail(c, http.StatusInternalServerError, "count failed")
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list feed")
		fail(c, http.StatusInternalServerError, "list failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"pagination": gin.H{
			"currentPage":   page,
			"totalPages":    int(math.Ceil(float64(total) / float64(clampLimit(q.Limit)))),
			"totalArticles": total,
		},
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id := c.Param("id")
	a, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.Logger.Error().Err(err).Str("id", id).Msg("get article")
		fail(c, http.StatusInternalServerError, "get failed")
		return
	}
	if a == nil {
		fail(c, http.StatusNotFound, "article not found")
		return
	}

	if claims := auth.MustGetClaims(c); claims != nil && h.Readers != nil {
		if err := h.Readers.RecordRead(c.Request.Context(), claims.UserID, a.ID); err != nil {
			h.Logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("record read")
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": a})
}

func (h *Handler) refresh(c *gin.Context) {
	if h.Refresher == nil {
		fail(c, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}

	cats := []models.Category{models.CategoryTechnology, models.CategoryPolitics, models.CategoryBusiness}
	if claims := auth.MustGetClaims(c); claims != nil && h.Readers != nil {
		if p, err := h.Readers.Preferences(c.Request.Context(), claims.UserID); err == nil && len(p.Topics) > 0 {
			cats = p.Topics
		}
	}

	added := h.Refresher.FetchAndIngest(c.Request.Context(), cats, refreshTarget)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Refreshed " + strconv.Itoa(len(added)) + " articles",
		"data":    added,
	})
}

// parseCategories reads category=a,b or repeated params. The second result
// is false when the caller asked for "all" or nothing.
func parseCategories(raw string) ([]models.Category, bool) {
	var out []models.Category
	for _, p := range strings.Split(raw, ",") {
		if cat, ok := models.ParseCategory(p); ok {
			out = append(out, cat)
		}
	}
	return out, len(out) > 0
}

func isAll(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "all")
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
