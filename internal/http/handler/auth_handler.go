package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jgorset/fandjango/internal/config"
	"github.com/jgorset/fandjango/internal/http/middleware"
	"github.com/jgorset/fandjango/internal/service"
	"github.com/jgorset/fandjango/internal/signedrequest"
)

// AuthHandler serves the authorization redirect flow and Facebook's
// deauthorization webhook.
type AuthHandler struct {
	Config    config.Config
	Resolver  *service.Resolver
	Presenter *middleware.Presenter
	Logger    *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(cfg config.Config, resolver *service.Resolver, presenter *middleware.Presenter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Config: cfg, Resolver: resolver, Presenter: presenter, Logger: logger}
}

// Authorize renders the redirect that sends the viewer to Facebook's OAuth
// dialog, returning to the requested URI or the canvas afterwards.
func (h *AuthHandler) Authorize(c *gin.Context) {
	redirectURI := c.Query("redirect_uri")
	if redirectURI == "" {
		redirectURI = h.Config.CanvasURL
	}
	h.Presenter.Prompt(c, redirectURI)
}

// Deauthorize handles the webhook Facebook posts when a user revokes the
// application. Facebook retries on non-2xx, so malformed or unverifiable
// posts are logged and acknowledged rather than rejected.
func (h *AuthHandler) Deauthorize(c *gin.Context) {
	raw := c.PostForm(middleware.SignedRequestField)
	if raw == "" {
		h.Logger.Warn("deauthorization webhook without signed request")
		c.Status(http.StatusOK)
		return
	}

	payload, err := signedrequest.Decode(raw, h.Config.Secret())
	if err != nil {
		h.Logger.Warn("deauthorization webhook with unverifiable signed request", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}
	if payload.UserID == "" {
		h.Logger.Warn("deauthorization webhook without user id")
		c.Status(http.StatusOK)
		return
	}

	if err := h.Resolver.Deauthorize(c.Request.Context(), payload.UserID); err != nil {
		h.Logger.Error("deauthorization failed", zap.String("facebook_id", payload.UserID), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

// Me returns the resolved user for the current request. Mounted behind
// RequireAuthorization, so an identity is always present here.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok || !identity.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization_required"})
		return
	}
	user := identity.User
	c.JSON(http.StatusOK, gin.H{
		"id":           user.ID,
		"facebook_id":  user.FacebookID,
		"first_name":   user.FirstName,
		"last_name":    user.LastName,
		"full_name":    user.FullName(),
		"profile_url":  user.ProfileURL,
		"gender":       user.Gender,
		"locale":       user.Locale,
		"authorized":   user.Authorized,
		"created_at":   user.CreatedAt.Format(time.RFC3339),
		"last_seen_at": user.LastSeenAt.Format(time.RFC3339),
	})
}
