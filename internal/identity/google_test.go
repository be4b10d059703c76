package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/kekarecall/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newGoogleStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600}`))
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"bia@example.com","name":"Bia"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *GoogleProvider {
	cfg := NewGoogleOAuthConfig(config.GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/google/callback",
	})
	cfg.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	p := NewGoogleProvider(cfg)
	p.endpoint = srv.URL + "/"
	return p
}

func TestAuthCodeURLRequestsOfflineConsent(t *testing.T) {
	p := NewGoogleProvider(NewGoogleOAuthConfig(config.GoogleConfig{ClientID: "client", RedirectURL: "http://localhost/cb"}))

	u, err := url.Parse(p.AuthCodeURL("state-123"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/calendar.events")
	assert.Contains(t, q.Get("scope"), "userinfo.email")
}

func TestExchangeAndProfile(t *testing.T) {
	p := newTestProvider(newGoogleStub(t))
	ctx := context.Background()

	token, err := p.Exchange(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)

	profile, err := p.Profile(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "bia@example.com", profile.Email)
	assert.Equal(t, "Bia", profile.Name)
}

func TestExchangeFailure(t *testing.T) {
	p := newTestProvider(newGoogleStub(t))

	_, err := p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestProfileRejectedToken(t *testing.T) {
	p := newTestProvider(newGoogleStub(t))

	_, err := p.Profile(context.Background(), &oauth2.Token{AccessToken: "stale", TokenType: "Bearer"})
	assert.Error(t, err)
}
