package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jgorset/fandjango/internal/config"
	"github.com/jgorset/fandjango/internal/http/handler"
	httpmiddleware "github.com/jgorset/fandjango/internal/http/middleware"
	"github.com/jgorset/fandjango/internal/middleware"
)

// NewRouter wires Gin routes and middleware. The canvas authenticator wraps
// the canvas surface; the web OAuth authenticator wraps the site surface. The
// authorize and deauthorize endpoints stay outside both so Facebook can reach
// them without a credential.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, canvas *httpmiddleware.Canvas, webOAuth *httpmiddleware.WebOAuth, presenter *httpmiddleware.Presenter, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(otelgin.Middleware(cfg.ServiceName))

	fandjango := r.Group("/fandjango")
	{
		fandjango.GET("/authorize", authHandler.Authorize)
		fandjango.POST("/deauthorize", authHandler.Deauthorize)
	}

	canvasGroup := r.Group("/", canvas.Handler())
	{
		canvasGroup.GET("/me", httpmiddleware.RequireAuthorization(cfg, presenter), authHandler.Me)
		canvasGroup.POST("/me", httpmiddleware.RequireAuthorization(cfg, presenter), authHandler.Me)
	}

	site := r.Group("/site", webOAuth.Handler())
	{
		site.GET("/me", httpmiddleware.RequireAuthorization(cfg, presenter), authHandler.Me)
	}

	return r
}
