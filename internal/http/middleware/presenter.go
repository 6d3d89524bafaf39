package middleware

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jgorset/fandjango/internal/config"
)

// oauthDialogURL is Facebook's authorization dialog endpoint.
const oauthDialogURL = "https://www.facebook.com/dialog/oauth"

// Facebook refuses to render the dialog inside an iframe, so canvas requests
// break out by redirecting the parent window from a script.
var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
	<head>
		<script type="text/javascript">
			window.parent.location = "{{.}}";
		</script>
	</head>
	<body>
		<noscript>
			You must <a href="{{.}}">authorize the application</a> in order to continue.
		</noscript>
	</body>
</html>
`))

// Presenter produces authorization-redirect responses.
type Presenter struct {
	appID string
	scope []string
}

// NewPresenter builds a presenter from application configuration.
func NewPresenter(cfg config.Config) *Presenter {
	return &Presenter{appID: cfg.FacebookAppID, scope: cfg.InitialScope}
}

// DialogURL builds the OAuth dialog URL the viewer must visit to authorize
// the application.
func (p *Presenter) DialogURL(redirectURI string) string {
	params := url.Values{}
	params.Set("client_id", p.appID)
	params.Set("redirect_uri", redirectURI)
	if len(p.scope) > 0 {
		params.Set("scope", strings.Join(p.scope, ","))
	}
	return oauthDialogURL + "?" + params.Encode()
}

// Prompt answers a request that needs authorization. API clients get a
// machine-readable 401; browsers get the self-submitting script page that
// redirects the parent frame to the dialog.
func (p *Presenter) Prompt(c *gin.Context, redirectURI string) {
	dialog := p.DialogURL(redirectURI)
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "authorization_required",
			"error_description": "The viewer has not authorized the application.",
			"authorization_url": dialog,
		})
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = redirectPage.Execute(c.Writer, dialog)
}

// Redirect sends the website variant straight to the dialog; no frame
// breakout is needed outside the canvas.
func (p *Presenter) Redirect(c *gin.Context, redirectURI string) {
	c.Redirect(http.StatusSeeOther, p.DialogURL(redirectURI))
}
