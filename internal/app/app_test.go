package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/vpecom/shop-admin/internal/session"
	"github.com/vpecom/shop-admin/pkg/health"
	"github.com/vpecom/shop-admin/pkg/httpmiddleware"
)

func newTestServer(t *testing.T) (*httptest.Server, *health.Health) {
	t.Helper()
	cfg := &Config{
		Backend:     BackendMemory,
		SessionFile: filepath.Join(t.TempDir(), "session.toml"),
		GitHub:      GitHubConfig{RawHost: "raw.example.com", Branch: "main"},
	}
	backend, err := NewBackend(cfg, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	healthSvc := health.New()
	srv := httptest.NewServer(NewHTTPHandler(zap.NewNop(), cfg, Deps{
		Sessions:       session.NewStore(cfg.SessionFile),
		Backend:        backend,
		Health:         healthSvc,
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}))
	t.Cleanup(srv.Close)
	return srv, healthSvc
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestServer_SetupThenEdit(t *testing.T) {
	srv, _ := newTestServer(t)

	_, page := call(t, srv, http.MethodGet, "/", "")
	assert.Contains(t, page, "Admin Setup")

	resp, body := call(t, srv, http.MethodPost, "/api/setup", `{"repo":"acme/shop","token":"t"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.NotEmpty(t, resp.Header.Get(httpmiddleware.RequestIDHeader))

	_, page = call(t, srv, http.MethodGet, "/", "")
	assert.Contains(t, page, "Catalog Admin")

	resp, body = call(t, srv, http.MethodPost, "/api/update-cats", `{"categories":["Shoes","Hats"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	resp, body = call(t, srv, http.MethodPost, "/api/upload", `{"editIndex":-1,"product":{"title":"Boots","price":"49.5","category":"Shoes"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = call(t, srv, http.MethodGet, "/api/get-data", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		Products []struct {
			Title    string  `json:"title"`
			Price    float64 `json:"price"`
			Category string  `json:"category"`
		} `json:"products"`
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &data), body)
	assert.Equal(t, []string{"Shoes", "Hats"}, data.Categories)
	require.Len(t, data.Products, 1)
	assert.Equal(t, "Boots", data.Products[0].Title)
	assert.Equal(t, 49.5, data.Products[0].Price)
	assert.Equal(t, "Shoes", data.Products[0].Category)

	resp, _ = call(t, srv, http.MethodPost, "/api/logout", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, page = call(t, srv, http.MethodGet, "/", "")
	assert.Contains(t, page, "Admin Setup")
}

func TestServer_Probes(t *testing.T) {
	srv, healthSvc := newTestServer(t)

	resp, body := call(t, srv, http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, _ = call(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	healthSvc.SetReady(true)
	resp, _ = call(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RequestIDEchoed(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/livez", nil)
	require.NoError(t, err)
	req.Header.Set(httpmiddleware.RequestIDHeader, "custom-request-id-12345")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "custom-request-id-12345", resp.Header.Get(httpmiddleware.RequestIDHeader))
}

func TestServer_UnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := call(t, srv, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = call(t, srv, http.MethodDelete, "/api/upload", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestConfigFinish(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		cfg := &Config{Backend: "s3"}
		assert.Error(t, cfg.finish())
	})

	t.Run("session file default", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())
		cfg := &Config{Backend: BackendMemory, Addr: "127.0.0.1:5000"}
		require.NoError(t, cfg.finish())
		assert.Equal(t, filepath.Join("vpecom", "session.toml"),
			filepath.Join(filepath.Base(filepath.Dir(cfg.SessionFile)), filepath.Base(cfg.SessionFile)))
	})

	t.Run("port override", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		cfg := &Config{Backend: BackendGitHub, Addr: "127.0.0.1:5000", SessionFile: "s.toml"}
		require.NoError(t, cfg.finish())
		assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	})

	t.Run("explicit addr kept", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		cfg := &Config{Backend: BackendGitHub, Addr: ":9000", SessionFile: "s.toml"}
		require.NoError(t, cfg.finish())
		assert.Equal(t, ":9000", cfg.Addr)
	})
}
