package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meverapp/media-gateway/internal/config"
)

const (
	testAppID    = "com.mever.android"
	testPassword = "correct-horse"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// newTestServer wires a server against a stub upstream with no redis or
// postgres. The returned counter reports upstream call volume.
func newTestServer(t *testing.T, upstream http.HandlerFunc) (*Server, *int32) {
	t.Helper()

	var calls int32
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		upstream(w, r)
	}))
	t.Cleanup(stub.Close)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Upstream.BaseURL = stub.URL
	cfg.Upstream.APIKey = "test-key"
	cfg.Upstream.BackoffSeconds = 0
	cfg.AppConfig.Path = filepath.Join(t.TempDir(), "app-config.json")
	cfg.Auth.AdminPasswordHash = string(hash)
	cfg.Auth.JWTSecret = "test-secret"

	return New(cfg, nil, nil, nil), &calls
}

func jsonUpstream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status": true}`))
}

func doRequest(srv *Server, method, target, appID, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if appID != "" {
		req.Header.Set("X-App-Id", appID)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T, srv *Server) string {
	t.Helper()

	body, _ := json.Marshal(gin.H{"email": "admin@mever.app", "password": testPassword})
	w := doRequest(srv, "POST", "/admin/login", "", "", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func TestPublicConfigReadNeedsNoIdentity(t *testing.T) {
	srv, _ := newTestServer(t, jsonUpstream)

	w := doRequest(srv, "GET", "/api/app-config", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, time.Now().Weekday().String(), doc["current_day"])
	assert.Nil(t, doc["maintenance_day"])
}

func TestGatedEndpointsDenyUnknownClients(t *testing.T) {
	srv, calls := newTestServer(t, jsonUpstream)

	for _, path := range []string{"/api/tiktok?url=https://x", "/api/meta?q=hi", "/api/auth-check"} {
		w := doRequest(srv, "GET", path, "", "", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)

		w = doRequest(srv, "GET", path, "com.stranger.app", "", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.Contains(t, w.Body.String(), "Access denied")
	}

	assert.Zero(t, atomic.LoadInt32(calls), "denied requests must never reach upstream")
}

func TestUnexposedEndpointDenied(t *testing.T) {
	srv, _ := newTestServer(t, jsonUpstream)

	w := doRequest(srv, "GET", "/api/does-not-exist", testAppID, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	// Generic body, no allowlist leak.
	assert.Equal(t, `{"error":"Access denied"}`, w.Body.String())
}

func TestDownloadMissingURLRejectedBeforeUpstream(t *testing.T) {
	srv, calls := newTestServer(t, jsonUpstream)

	w := doRequest(srv, "GET", "/api/tiktok", testAppID, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(srv, "GET", "/api/tiktok?url=ftp://nope", testAppID, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestDownloadForwardsAndReturnsUpstreamBody(t *testing.T) {
	srv, calls := newTestServer(t, jsonUpstream)

	w := doRequest(srv, "GET", "/api/tiktok?url=https://vt.tiktok.com/x", testAppID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": true}`, w.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestBurstLimitRejectsEleventhDownload(t *testing.T) {
	srv, _ := newTestServer(t, jsonUpstream)

	for i := 0; i < 10; i++ {
		w := doRequest(srv, "GET", "/api/tiktok?url=https://x", testAppID, "", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := doRequest(srv, "GET", "/api/tiktok?url=https://x", testAppID, "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "burst")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitChargedEvenWhenUpstreamFails(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	// Failed upstream calls still consume burst budget.
	for i := 0; i < 10; i++ {
		w := doRequest(srv, "GET", "/api/tiktok?url=https://x", testAppID, "", nil)
		require.Equal(t, http.StatusInternalServerError, w.Code)
	}

	w := doRequest(srv, "GET", "/api/tiktok?url=https://x", testAppID, "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestUpstreamNotFoundSurfacesAsTerminalFailure(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := doRequest(srv, "GET", "/api/youtube?url=https://youtu.be/x", testAppID, "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])
	assert.NotContains(t, w.Body.String(), "test-key")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "terminal failures are not retried")
}

func TestYoutubeRejectsBogusType(t *testing.T) {
	srv, calls := newTestServer(t, jsonUpstream)

	w := doRequest(srv, "GET", "/api/youtube?url=https://youtu.be/x&type=gif", testAppID, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestMetaRequiresQuery(t *testing.T) {
	srv, calls := newTestServer(t, jsonUpstream)

	w := doRequest(srv, "GET", "/api/meta", testAppID, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, atomic.LoadInt32(calls))

	w = doRequest(srv, "GET", "/api/meta?q=golang", testAppID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestImageSearchDisabledByToggle(t *testing.T) {
	srv, calls := newTestServer(t, jsonUpstream)

	// Turn the toggle off through the admin update path.
	token := adminToken(t, srv)
	body := []byte(`{"features": {"downloader": true, "image_search": false}}`)
	w := doRequest(srv, "POST", "/api/app-config", testAppID, token, body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(srv, "GET", "/api/image-search?q=cats", testAppID, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestImageSearchSubstitutesMissingQuery(t *testing.T) {
	srv, _ := newTestServer(t, jsonUpstream)

	w := doRequest(srv, "GET", "/api/image-search", testAppID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["substituted_query"])
	assert.NotNil(t, resp["result"])
}

func TestConfigUpdateRequiresAdmin(t *testing.T) {
	srv, _ := newTestServer(t, jsonUpstream)

	body := []byte(`{"version": "9.9.9"}`)

	w := doRequest(srv, "POST", "/api/app-config", testAppID, "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(srv, "POST", "/api/app-config", testAppID, "not-a-token", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := adminToken(t, srv)
	w = doRequest(srv, "POST", "/api/app-config", testAppID, token, body)
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "9.9.9", doc["version"])
}

func TestAuthCheck(t *testing.T) {
	srv, _ := newTestServer(t, jsonUpstream)

	w := doRequest(srv, "GET", "/api/auth-check", testAppID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := adminToken(t, srv)
	w = doRequest(srv, "GET", "/api/auth-check", testAppID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated": true}`, w.Body.String())
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t, jsonUpstream)

	body, _ := json.Marshal(gin.H{"email": "admin@mever.app", "password": "wrong"})
	w := doRequest(srv, "POST", "/admin/login", "", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWriteTimeoutCoversFullRetryCycle(t *testing.T) {
	// Defaults: two 30 s attempts plus a 2 s backoff plus headroom.
	assert.Equal(t, 65*time.Second, writeTimeout(config.Default().Upstream))

	got := writeTimeout(config.UpstreamConfig{
		TimeoutSeconds: 10,
		BackoffSeconds: 1,
		MaxAttempts:    3,
	})
	assert.Equal(t, 35*time.Second, got)

	// Zero values fall back to the engine's own defaults.
	assert.Equal(t, 63*time.Second, writeTimeout(config.UpstreamConfig{}))
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, jsonUpstream)

	w := doRequest(srv, "GET", "/health", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}
