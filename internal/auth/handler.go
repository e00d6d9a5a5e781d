package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"newslens/pkg/models"
)

// PreferenceLoader supplies the preferences echoed back with a user.
type PreferenceLoader interface {
	Preferences(ctx context.Context, userID string) (models.Preferences, error)
}

type Handler struct {
	Repo   *Repo
	Tokens TokenService
	Prefs  PreferenceLoader
	Logger zerolog.Logger
}

func NewHandler(repo *Repo, tokens TokenService, prefs PreferenceLoader, logger zerolog.Logger) *Handler {
	return &Handler{
		Repo:   repo,
		Tokens: tokens,
		Prefs:  prefs,
		Logger: logger.With().Str("component", "auth").Logger(),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	requireAuth := AuthMiddleware(h.Tokens, h.Repo)

	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.GET("/me", requireAuth, h.me)
	rg.POST("/change-password", requireAuth, h.changePassword)
	rg.POST("/logout", requireAuth, h.logout)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func (h *Handler) userJSON(ctx context.Context, u *User) gin.H {
	prefs := models.DefaultPreferences()
	if h.Prefs != nil {
		if p, err := h.Prefs.Preferences(ctx, u.ID); err == nil {
			prefs = p
		} else {
			h.Logger.Warn().Err(err).Str("user_id", u.ID).Msg("load preferences")
		}
	}
	return gin.H{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"preferences": prefs,
	}
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if len(req.Username) < 3 || len(req.Username) > 30 {
		fail(c, http.StatusBadRequest, "username must be 3-30 chars")
		return
	}
	if !strings.Contains(req.Email, "@") || len(req.Email) > 255 {
		fail(c, http.StatusBadRequest, "invalid email")
		return
	}
	if len(req.Password) < 6 || len(req.Password) > 72 {
		fail(c, http.StatusBadRequest, "password must be 6-72 chars")
		return
	}

	ctx := c.Request.Context()
	if u, _ := h.Repo.GetByEmail(ctx, req.Email); u != nil {
		fail(c, http.StatusBadRequest, "email already exists")
		return
	}
	if u, _ := h.Repo.GetByUsername(ctx, req.Username); u != nil {
		fail(c, http.StatusBadRequest, "username already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, http.StatusInternalServerError, "hash failed")
		return
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := h.Repo.CreateUser(ctx, *u); err != nil {
		// unique constraint races land here
		h.Logger.Error().Err(err).Msg("create user")
		fail(c, http.StatusInternalServerError, "an error occurred during registration")
		return
	}

	h.respondWithToken(c, http.StatusCreated, "user created successfully", u)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "email and password required")
		return
	}

	u, err := h.Repo.GetByEmail(c.Request.Context(), email)
	if err != nil || u == nil {
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithToken(c, http.StatusOK, "login successful", u)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, msg string, u *User) {
	token, exp, err := h.Tokens.Sign(u)
	if err != nil {
		fail(c, http.StatusInternalServerError, "token failed")
		return
	}

	c.JSON(status, gin.H{
		"success":   true,
		"message":   msg,
		"token":     token,
		"expiresAt": exp.UTC().Format(time.RFC3339),
		"user":      h.userJSON(c.Request.Context(), u),
	})
}

func (h *Handler) me(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		fail(c, http.StatusUnauthorized, "invalid token")
		return
	}

	u, err := h.Repo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "error fetching profile")
		return
	}
	if u == nil {
		fail(c, http.StatusNotFound, "user not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": h.userJSON(c.Request.Context(), u)})
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		fail(c, http.StatusBadRequest, "old and new password required")
		return
	}
	if len(req.NewPassword) < 6 || len(req.NewPassword) > 72 {
		fail(c, http.StatusBadRequest, "password must be 6-72 chars")
		return
	}

	claims := MustGetClaims(c)
	u, err := h.Repo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil || u == nil {
		fail(c, http.StatusUnauthorized, "invalid token")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)); err != nil {
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		fail(c, http.StatusInternalServerError, "hash failed")
		return
	}
	if err := h.Repo.UpdatePassword(c.Request.Context(), u.ID, string(hash)); err != nil {
		fail(c, http.StatusInternalServerError, "update password failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "password updated"})
}

func (h *Handler) logout(c *gin.Context) {
	claims := MustGetClaims(c)
	if err := h.Repo.BumpTokenVersion(c.Request.Context(), claims.UserID); err != nil {
		fail(c, http.StatusInternalServerError, "logout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}
