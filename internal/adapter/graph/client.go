package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is Facebook's Graph API endpoint.
const DefaultBaseURL = "https://graph.facebook.com"

// ErrExternalService wraps network and parse failures talking to the Graph
// API. Callers decide whether the failure is fatal; token extension never is.
var ErrExternalService = errors.New("graph: external service error")

// Token is the credential material returned by the token endpoint. Expires is
// relative seconds from now; zero means non-expiring.
type Token struct {
	AccessToken string
	Expires     int64
}

// Profile is the subset of /me fields the application synchronizes.
type Profile struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Name      string  `json:"name"`
	Gender    string  `json:"gender"`
	Locale    string  `json:"locale"`
	Link      string  `json:"link"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Verified  bool    `json:"verified"`
	Timezone  float64 `json:"timezone"`
}

// Client encapsulates outbound HTTP calls to the Graph API.
type Client interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error)
	ExtendToken(ctx context.Context, token string) (*Token, error)
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}

// HTTPClient is the default HTTP implementation.
type HTTPClient struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs the default Client.
func NewHTTPClient(appID, appSecret string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		appID:      appID,
		appSecret:  appSecret,
		baseURL:    DefaultBaseURL,
		httpClient: client,
	}
}

// ExchangeCode trades an authorization code for an access token. The legacy
// token endpoint answers with a query-string body, not JSON.
func (c *HTTPClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	params := url.Values{}
	params.Set("client_id", c.appID)
	params.Set("client_secret", c.appSecret)
	params.Set("redirect_uri", redirectURI)
	params.Set("code", code)

	body, err := c.get(ctx, "/oauth/access_token", params)
	if err != nil {
		return nil, err
	}
	token, err := parseTokenResponse(body)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ExtendToken requests a long-lived token via the fb_exchange_token grant.
// Facebook answers an already-extended token with a body that omits the
// expires field; that response yields the input token unchanged rather than
// an error.
func (c *HTTPClient) ExtendToken(ctx context.Context, token string) (*Token, error) {
	params := url.Values{}
	params.Set("client_id", c.appID)
	params.Set("client_secret", c.appSecret)
	params.Set("grant_type", "fb_exchange_token")
	params.Set("fb_exchange_token", token)

	body, err := c.get(ctx, "/oauth/access_token", params)
	if err != nil {
		return nil, err
	}
	extended, err := parseTokenResponse(body)
	if err != nil {
		return nil, err
	}
	if extended.Expires == 0 {
		return &Token{AccessToken: token}, nil
	}
	return extended, nil
}

// FetchProfile loads the viewer's profile from /me.
func (c *HTTPClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)

	body, err := c.get(ctx, "/me", params)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", ErrExternalService, err)
	}
	return &profile, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrExternalService, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrExternalService, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: status=%d body=%s", ErrExternalService, path, resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func parseTokenResponse(body []byte) (*Token, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse token response: %v", ErrExternalService, err)
	}
	accessToken := values.Get("access_token")
	if accessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", ErrExternalService)
	}
	token := &Token{AccessToken: accessToken}
	if raw := values.Get("expires"); raw != "" {
		expires, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parse expires: %v", ErrExternalService, err)
		}
		token.Expires = expires
	}
	return token, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
