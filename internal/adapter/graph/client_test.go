package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewHTTPClient("app-id", "app-secret", srv.Client())
	client.baseURL = srv.URL
	return client
}

func TestExchangeCodeParsesQueryStringBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/access_token", r.URL.Path)
		require.Equal(t, "app-id", r.URL.Query().Get("client_id"))
		require.Equal(t, "app-secret", r.URL.Query().Get("client_secret"))
		require.Equal(t, "the-code", r.URL.Query().Get("code"))
		require.Equal(t, "https://apps.facebook.com/example/", r.URL.Query().Get("redirect_uri"))
		w.Write([]byte("access_token=abc123&expires=5183999"))
	})

	token, err := client.ExchangeCode(context.Background(), "the-code", "https://apps.facebook.com/example/")
	require.NoError(t, err)
	require.Equal(t, "abc123", token.AccessToken)
	require.EqualValues(t, 5183999, token.Expires)
}

func TestExchangeCodeMissingAccessToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("expires=5183999"))
	})

	_, err := client.ExchangeCode(context.Background(), "the-code", "https://example.test/")
	require.ErrorIs(t, err, ErrExternalService)
}

func TestExchangeCodeUpstreamFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid verification code."}}`))
	})

	_, err := client.ExchangeCode(context.Background(), "bad-code", "https://example.test/")
	require.ErrorIs(t, err, ErrExternalService)
}

func TestExtendToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "fb_exchange_token", r.URL.Query().Get("grant_type"))
		require.Equal(t, "short-lived", r.URL.Query().Get("fb_exchange_token"))
		w.Write([]byte("access_token=long-lived&expires=5183999"))
	})

	token, err := client.ExtendToken(context.Background(), "short-lived")
	require.NoError(t, err)
	require.Equal(t, "long-lived", token.AccessToken)
	require.EqualValues(t, 5183999, token.Expires)
}

func TestExtendTokenAlreadyExtended(t *testing.T) {
	// Extending an already long-lived token makes Facebook return the same
	// token without an expires field; the input token comes back unchanged.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("access_token=long-lived"))
	})

	token, err := client.ExtendToken(context.Background(), "long-lived")
	require.NoError(t, err)
	require.Equal(t, "long-lived", token.AccessToken)
	require.EqualValues(t, 0, token.Expires)
}

func TestFetchProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me", r.URL.Path)
		require.Equal(t, "abc123", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "499016706",
			"first_name": "Helgi",
			"last_name": "Hrafn",
			"name": "Helgi Hrafn",
			"gender": "male",
			"locale": "nb_NO",
			"link": "https://www.facebook.com/helgi",
			"verified": true
		}`))
	})

	profile, err := client.FetchProfile(context.Background(), "abc123")
	require.NoError(t, err)
	require.Equal(t, "499016706", profile.ID)
	require.Equal(t, "Helgi", profile.FirstName)
	require.Equal(t, "Hrafn", profile.LastName)
	require.True(t, profile.Verified)
}

func TestFetchProfileBadJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.FetchProfile(context.Background(), "abc123")
	require.ErrorIs(t, err, ErrExternalService)
}
