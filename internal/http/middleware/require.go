package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jgorset/fandjango/internal/config"
)

// RequireAuthorization guards endpoints that need a resolved user. Anything
// short of an authenticated identity receives the authorization prompt.
func RequireAuthorization(cfg config.Config, presenter *Presenter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity, ok := GetIdentity(c); ok && identity.Authenticated() {
			c.Next()
			return
		}
		presenter.Prompt(c, cfg.CanvasURL+c.Request.URL.RequestURI())
		c.Abort()
	}
}
