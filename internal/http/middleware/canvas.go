package middleware

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jgorset/fandjango/internal/config"
	"github.com/jgorset/fandjango/internal/service"
	"github.com/jgorset/fandjango/internal/signedrequest"
)

// SignedRequestField is the parameter Facebook uses to convey the signed
// request in queries, form bodies, cookies, and webhook posts.
const SignedRequestField = "signed_request"

// P3PHeader is the compact policy IE requires before accepting third-party
// cookies set from inside the canvas iframe.
const P3PHeader = `CP="IDC CURa ADMa OUR IND PHY ONL COM STA"`

// Canvas authenticates requests arriving through Facebook's iframe-hosted
// canvas surface via the signed request.
type Canvas struct {
	cfg       config.Config
	filter    *pathFilter
	resolver  *service.Resolver
	manager   *service.TokenManager
	presenter *Presenter
	denied    gin.HandlerFunc
	logger    *zap.Logger
}

// NewCanvas wires the canvas authenticator. The denied handler runs when the
// viewer refuses authorization; nil installs a plain 403.
func NewCanvas(cfg config.Config, resolver *service.Resolver, manager *service.TokenManager, presenter *Presenter, denied gin.HandlerFunc, logger *zap.Logger) (*Canvas, error) {
	filter, err := newPathFilter(cfg)
	if err != nil {
		return nil, err
	}
	if denied == nil {
		denied = defaultDeniedHandler
	}
	return &Canvas{
		cfg:       cfg,
		filter:    filter,
		resolver:  resolver,
		manager:   manager,
		presenter: presenter,
		denied:    denied,
		logger:    logger,
	}, nil
}

// Handler returns the gin middleware implementing the canvas flow.
func (m *Canvas) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.filter.skip(c.Request.URL.Path) {
			c.Next()
			return
		}

		c.Header("P3P", P3PHeader)

		if c.Query("error") == "access_denied" {
			SetIdentity(c, &Identity{State: StateDenied})
			m.denied(c)
			c.Abort()
			return
		}

		raw, fromCookie := m.signedRequestFrom(c)
		if raw == "" {
			SetIdentity(c, &Identity{State: StateNoCredential})
			c.Next()
			return
		}

		m.rewritePostNavigation(c)

		payload, err := signedrequest.Decode(raw, m.cfg.Secret())
		if err != nil {
			// Verification failures degrade to anonymous; they are never
			// surfaced to the wrapped handler.
			m.logger.Debug("discarding unverifiable signed request", zap.Error(err))
			SetIdentity(c, &Identity{State: StateNoCredential})
			c.Next()
			return
		}

		// A user id without a token means the viewer has not authorized the
		// application; both are required to resolve an identity.
		token := payload.Token()
		if payload.UserID == "" || token == nil {
			SetIdentity(c, &Identity{State: StateNoCredential, Payload: payload})
			m.persistSignedRequest(c, raw, fromCookie)
			c.Next()
			return
		}

		if token.Expired(time.Now()) {
			SetIdentity(c, &Identity{State: StateTokenExpired, Payload: payload})
			m.presenter.Prompt(c, m.cfg.CanvasURL+c.Request.URL.RequestURI())
			c.Abort()
			return
		}

		material := &service.TokenMaterial{
			Token:     token.Token,
			IssuedAt:  token.IssuedAt,
			ExpiresAt: token.ExpiresAt,
		}

		user, _, err := m.resolver.Resolve(c.Request.Context(), payload.UserID, material)
		if err != nil {
			m.logger.Error("identity resolution failed",
				zap.String("facebook_id", payload.UserID),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Identity could not be established.",
			})
			return
		}

		SetIdentity(c, &Identity{
			State:   StateAuthenticated,
			User:    user,
			Token:   token,
			Payload: payload,
		})

		// Extension failures are discarded on purpose; a short-lived token is
		// still a valid token.
		_ = m.manager.ExtendBestEffort(c.Request.Context(), user)

		m.persistSignedRequest(c, raw, fromCookie)
		c.Next()
	}
}

// signedRequestFrom reads the signed request from the query string, the form
// body, or the session cookie, in that order.
func (m *Canvas) signedRequestFrom(c *gin.Context) (raw string, fromCookie bool) {
	if v := c.Query(SignedRequestField); v != "" {
		return v, false
	}
	if v := c.PostForm(SignedRequestField); v != "" {
		return v, false
	}
	if v, err := c.Cookie(SignedRequestField); err == nil && v != "" {
		return v, true
	}
	return "", false
}

// rewritePostNavigation corrects Facebook's use of POST for what is
// semantically a GET: when the only form content is the signed request, the
// method becomes GET and the body is dropped.
func (m *Canvas) rewritePostNavigation(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		return
	}
	form := c.Request.PostForm
	if len(form) != 1 || form.Get(SignedRequestField) == "" {
		return
	}
	c.Request.Method = http.MethodGet
	c.Request.Body = io.NopCloser(strings.NewReader(""))
	c.Request.ContentLength = 0
}

// persistSignedRequest keeps the raw signed request in a cookie so identity
// survives in-canvas navigations that carry no parameters.
func (m *Canvas) persistSignedRequest(c *gin.Context, raw string, fromCookie bool) {
	if !m.cfg.CacheSignedRequest || fromCookie {
		return
	}
	c.SetCookie(SignedRequestField, raw, 0, "/", "", true, true)
}

func defaultDeniedHandler(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{
		"error":             "authorization_denied",
		"error_description": "The viewer refused to authorize the application.",
	})
}
