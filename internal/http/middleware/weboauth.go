package middleware

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgorset/fandjango/internal/adapter/cache"
	"github.com/jgorset/fandjango/internal/config"
	"github.com/jgorset/fandjango/internal/service"
)

// SessionCookie carries the web OAuth session id between navigations.
const SessionCookie = "fandjango_session"

// WebOAuth authenticates requests on the application's own website, where
// identity arrives as an authorization code and persists in a server-side
// session instead of a signed request.
type WebOAuth struct {
	cfg       config.Config
	filter    *pathFilter
	resolver  *service.Resolver
	manager   *service.TokenManager
	sessions  cache.SessionStore
	presenter *Presenter
	denied    gin.HandlerFunc
	logger    *zap.Logger
}

// NewWebOAuth wires the website authenticator.
func NewWebOAuth(cfg config.Config, resolver *service.Resolver, manager *service.TokenManager, sessions cache.SessionStore, presenter *Presenter, denied gin.HandlerFunc, logger *zap.Logger) (*WebOAuth, error) {
	filter, err := newPathFilter(cfg)
	if err != nil {
		return nil, err
	}
	if denied == nil {
		denied = defaultDeniedHandler
	}
	return &WebOAuth{
		cfg:       cfg,
		filter:    filter,
		resolver:  resolver,
		manager:   manager,
		sessions:  sessions,
		presenter: presenter,
		denied:    denied,
		logger:    logger,
	}, nil
}

// Handler returns the gin middleware implementing the website flow.
func (m *WebOAuth) Handler() gin.HandlerFunc {
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

		if code := c.Query("code"); code != "" {
			m.exchange(c, code)
			return
		}

		if sessionID, err := c.Cookie(SessionCookie); err == nil && sessionID != "" {
			m.restore(c, sessionID)
			return
		}

		SetIdentity(c, &Identity{State: StateNoCredential})
		c.Next()
	}
}

// exchange trades the authorization code for a token and starts a session.
// Exchange failure means no identity can be established; the request fails
// with a server error rather than silently downgrading a login attempt.
func (m *WebOAuth) exchange(c *gin.Context, code string) {
	SetIdentity(c, &Identity{State: StatePendingExchange})

	material, err := m.manager.Exchange(c.Request.Context(), code, m.redirectURI(c))
	if err != nil {
		m.logger.Error("code exchange failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Authorization code could not be exchanged.",
		})
		return
	}

	user, _, err := m.resolver.ResolveExchanged(c.Request.Context(), material)
	if err != nil {
		m.logger.Error("identity resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Identity could not be established.",
		})
		return
	}

	sessionID := uuid.NewString()
	session := cache.Session{
		FacebookID: user.FacebookID,
		UserID:     user.ID,
		TokenID:    user.OAuthTokenID,
		CreatedAt:  time.Now(),
	}
	if err := m.sessions.Save(c.Request.Context(), sessionID, session, m.cfg.SessionTTL); err != nil {
		m.logger.Error("session persistence failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Session could not be persisted.",
		})
		return
	}
	c.SetCookie(SessionCookie, sessionID, int(m.cfg.SessionTTL.Seconds()), "/", "", true, true)

	token, err := m.resolver.TokenByID(c.Request.Context(), user.OAuthTokenID)
	if err != nil {
		token = nil
	}
	SetIdentity(c, &Identity{State: StateAuthenticated, User: user, Token: token})
	_ = m.manager.ExtendBestEffort(c.Request.Context(), user)
	c.Next()
}

// restore revalidates a stored session. A missing, invalid, or expired token
// clears the session and degrades to anonymous.
func (m *WebOAuth) restore(c *gin.Context, sessionID string) {
	session, err := m.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		m.logger.Warn("session lookup failed", zap.Error(err))
	}
	if session == nil {
		m.clearSession(c, sessionID)
		SetIdentity(c, &Identity{State: StateNoCredential})
		c.Next()
		return
	}

	token, err := m.resolver.TokenByID(c.Request.Context(), session.TokenID)
	if err != nil || token.Expired(time.Now()) {
		m.clearSession(c, sessionID)
		SetIdentity(c, &Identity{State: StateNoCredential})
		c.Next()
		return
	}

	user, _, err := m.resolver.Resolve(c.Request.Context(), session.FacebookID, nil)
	if err != nil {
		m.clearSession(c, sessionID)
		SetIdentity(c, &Identity{State: StateNoCredential})
		c.Next()
		return
	}

	SetIdentity(c, &Identity{State: StateAuthenticated, User: user, Token: token})
	c.Next()
}

func (m *WebOAuth) clearSession(c *gin.Context, sessionID string) {
	_ = m.sessions.Delete(c.Request.Context(), sessionID)
	c.SetCookie(SessionCookie, "", -1, "/", "", true, true)
}

// redirectURI rebuilds the URI Facebook redirected back to, minus the code
// parameter; the token endpoint requires an exact match.
func (m *WebOAuth) redirectURI(c *gin.Context) string {
	base := m.cfg.AuthRedirectURL
	if base == "" {
		base = m.cfg.CanvasURL
	}
	query := c.Request.URL.Query()
	query.Del("code")
	rebuilt := url.URL{Path: c.Request.URL.Path, RawQuery: query.Encode()}
	return base + rebuilt.String()
}
