//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bracketops/incidentd/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bracketops/incidentd/internal/app"
	"github.com/bracketops/incidentd/internal/testutil"
)

const (
	testJWTSecret = "integration-test-secret"
	testAPIKey    = "integration-test-key"
)

func newAuthenticatedApp(t *testing.T) *testutil.Client {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Log.Level = "error"
	cfg.Auth.Enabled = true
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Auth.APIKeys = map[string]string{"ingest-gateway": string(hash)}

	authApp, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, authApp.Shutdown(context.Background()))
	})

	server := httptest.NewServer(authApp.Router())
	t.Cleanup(server.Close)

	return testutil.NewClient(server.URL)
}

func TestAuth_MissingCredentials(t *testing.T) {
	c := newAuthenticatedApp(t)

	resp, err := c.GET("/api/v1/incidents")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_APIKey(t *testing.T) {
	c := newAuthenticatedApp(t)

	c.APIKey = "wrong-key"
	resp, err := c.GET("/api/v1/incidents")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c.APIKey = testAPIKey
	resp, err = c.GET("/api/v1/incidents")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_JWT(t *testing.T) {
	c := newAuthenticatedApp(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "analyst@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	c.Token = signed
	resp, err := c.GET("/api/v1/incidents")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_ExpiredJWT(t *testing.T) {
	c := newAuthenticatedApp(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "analyst@example.com",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	c.Token = signed
	resp, err := c.GET("/api/v1/incidents")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
