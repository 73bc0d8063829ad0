package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpecom/shop-admin/internal/domain/catalog"
	"github.com/vpecom/shop-admin/internal/domain/document"
	"github.com/vpecom/shop-admin/internal/session"
	"github.com/vpecom/shop-admin/internal/storage/memory"
)

// --- Helpers ---

type testEnv struct {
	mux      *http.ServeMux
	store    *memory.Store
	sessions *session.Store
	checkErr error
}

type checkStore struct {
	*memory.Store
	err error
}

func (c checkStore) Check(context.Context) error { return c.err }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    memory.New(),
		sessions: session.NewStore(filepath.Join(t.TempDir(), "session.toml")),
	}
	backend := func(session.Connection) (document.Store, error) {
		return checkStore{Store: env.store, err: env.checkErr}, nil
	}
	pages := fstest.MapFS{
		SetupPage: {Data: []byte("<h1>setup</h1>")},
		AdminPage: {Data: []byte("<h1>admin</h1>")},
	}
	h := NewHandler(HandlerConfig{RawHost: "raw.example.com"}, env.sessions, backend,
		catalog.NewIDClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }), pages)

	env.mux = http.NewServeMux()
	h.Register(env.mux)
	return env
}

func (env *testEnv) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, env.sessions.Save(session.Connection{Repository: "acme/shop", Token: "t"}))
}

func (env *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

// --- Tests ---

func TestIndex(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "setup")

	env.connect(t)
	w = httptest.NewRecorder()
	env.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), "admin")
}

func TestSetup(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/setup", `{"repo":"acme","token":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.False(t, env.sessions.Configured())

	env.checkErr = document.ErrUnauthorized
	code, body = env.do(t, http.MethodPost, "/api/setup", `{"repo":"acme/shop","token":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "invalid credentials")
	assert.False(t, env.sessions.Configured())

	env.checkErr = document.ErrUnavailable
	code, _ = env.do(t, http.MethodPost, "/api/setup", `{"repo":"acme/shop","token":"x"}`)
	assert.Equal(t, http.StatusBadGateway, code)

	env.checkErr = nil
	code, body = env.do(t, http.MethodPost, "/api/setup", `{"repo":" /acme/shop/ ","token":" ok "}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	conn, err := env.sessions.Load()
	require.NoError(t, err)
	assert.Equal(t, session.Connection{Repository: "acme/shop", Token: "ok"}, conn)

	code, _ = env.do(t, http.MethodGet, "/api/logout", "")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.sessions.Configured())
}

func TestGetData(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/get-data", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body)

	env.connect(t)
	code, body = env.do(t, http.MethodGet, "/api/get-data", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{
		"products":   []any{},
		"categories": []any{},
		"banners":    []any{},
	}, body)
}

func TestProductLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	code, body := env.do(t, http.MethodPost, "/api/upload", `{"editIndex":-1,"product":{
		"title":"Red Shoes","price":"19.90","category":"","offer":"10","desc":"Comfy",
		"link":"https://buy.test/1","existingImages":[],"newImages":["data:image/webp;base64,`+b64("img")+`"]}}`)
	require.Equal(t, http.StatusOK, code, body)

	_, body = env.do(t, http.MethodGet, "/api/get-data", "")
	products := body["products"].([]any)
	require.Len(t, products, 1)
	p := products[0].(map[string]any)
	assert.Equal(t, "Red Shoes", p["title"])
	assert.Equal(t, 19.9, p["price"])
	assert.Equal(t, catalog.DefaultCategory, p["category"])
	assert.Equal(t, 10.0, p["offer"])
	assert.Equal(t, "Comfy", p["description"])
	assert.Equal(t, "https://buy.test/1", p["buyLink"])
	images := p["images"].([]any)
	require.Len(t, images, 1)
	assert.True(t, strings.HasPrefix(images[0].(string), "https://raw.example.com/acme/shop/main/images/"))
	assert.Equal(t, images[0], p["image"])
	id := p["id"]

	code, _ = env.do(t, http.MethodPost, "/api/upload", `{"editIndex":0,"product":{"title":"Red Shoes v2","price":21,
		"existingImages":[`+strings.Join([]string{`"` + images[0].(string) + `"`}, ",")+`]}}`)
	require.Equal(t, http.StatusOK, code)

	_, body = env.do(t, http.MethodGet, "/api/get-data", "")
	p = body["products"].([]any)[0].(map[string]any)
	assert.Equal(t, id, p["id"])
	assert.Equal(t, "Red Shoes v2", p["title"])

	code, body = env.do(t, http.MethodPost, "/api/upload", `{"editIndex":3,"product":{"title":"x"}}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])

	code, _ = env.do(t, http.MethodPost, "/api/delete", `{"index":0}`)
	require.Equal(t, http.StatusOK, code)
	for _, path := range env.store.Paths() {
		assert.False(t, strings.HasPrefix(path, "images/"), path)
	}

	code, _ = env.do(t, http.MethodPost, "/api/delete", `{"index":0}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUploadBulk(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	for _, title := range []string{"a", "b"} {
		code, _ := env.do(t, http.MethodPost, "/api/upload-bulk", `{"product":{"title":"`+title+`","price":1}}`)
		require.Equal(t, http.StatusOK, code)
	}
	_, body := env.do(t, http.MethodGet, "/api/get-data", "")
	products := body["products"].([]any)
	require.Len(t, products, 2)
	assert.Equal(t, "b", products[0].(map[string]any)["title"])
}

func TestCategoriesAndBanners(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	code, _ := env.do(t, http.MethodPost, "/api/update-cats", `{"categories":["Electronics","Books"]}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPost, "/api/upload-banner", `{"image":"`+b64("banner")+`","link":"https://sale.test"}`)
	require.Equal(t, http.StatusOK, code)

	_, body := env.do(t, http.MethodGet, "/api/get-data", "")
	assert.Equal(t, []any{"Electronics", "Books"}, body["categories"])
	banners := body["banners"].([]any)
	require.Len(t, banners, 1)
	assert.Equal(t, "https://sale.test", banners[0].(map[string]any)["link"])

	code, _ = env.do(t, http.MethodPost, "/api/delete-banner", `{"index":0}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPost, "/api/delete-banner", `{"index":0}`)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(t, http.MethodPost, "/api/delete-banner", `{"index":-3}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	commits := len(env.store.Commits())

	for _, tt := range []struct {
		path, body string
	}{
		{"/api/upload", ``},
		{"/api/upload", `[]`},
		{"/api/upload", `{"editIndex":0}`},
		{"/api/upload", `{"product":{"title":""}}`},
		{"/api/upload", `{"product":{"title":"x","price":"abc"}}`},
		{"/api/upload", `{"editIndex":1.5,"product":{"title":"x"}}`},
		{"/api/upload", `{"product":{"title":"x","newImages":["!!"]}}`},
		{"/api/update-cats", `{}`},
		{"/api/update-cats", `{"categories":[1]}`},
		{"/api/delete", `{}`},
		{"/api/upload-banner", `{"link":"x"}`},
	} {
		code, body := env.do(t, http.MethodPost, tt.path, tt.body)
		assert.Equal(t, http.StatusBadRequest, code, "%s %s", tt.path, tt.body)
		assert.Equal(t, false, body["success"], "%s %s", tt.path, tt.body)
	}
	assert.Len(t, env.store.Commits(), commits)
}

func TestOversizedIndex(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	code, _ := env.do(t, http.MethodPost, "/api/upload", `{"product":{"title":"seed","price":1}}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPost, "/api/upload-banner", `{"image":"`+b64("banner")+`"}`)
	require.Equal(t, http.StatusOK, code)
	commits := len(env.store.Commits())

	for _, tt := range []struct {
		path, body string
	}{
		{"/api/upload", `{"editIndex":18446744073709551615,"product":{"title":"huge","price":1}}`},
		{"/api/upload", `{"editIndex":-18446744073709551617,"product":{"title":"huge","price":1}}`},
		{"/api/upload", `{"editIndex":"4294967295","product":{"title":"huge","price":1}}`},
		{"/api/delete", `{"index":18446744073709551615}`},
		{"/api/delete-banner", `{"index":18446744073709551616}`},
	} {
		code, body := env.do(t, http.MethodPost, tt.path, tt.body)
		assert.Equal(t, http.StatusBadRequest, code, "%s %s", tt.path, tt.body)
		assert.Equal(t, false, body["success"], "%s %s", tt.path, tt.body)
	}
	assert.Len(t, env.store.Commits(), commits)

	_, body := env.do(t, http.MethodGet, "/api/get-data", "")
	products := body["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, "seed", products[0].(map[string]any)["title"])
	assert.Len(t, body["banners"], 1)
}

func TestNotConfigured(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/delete", `{"index":0}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])
}

func TestMapError(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want int
	}{
		{&catalog.ValidationError{Fields: []string{"x"}}, http.StatusBadRequest},
		{badRequest("x"), http.StatusBadRequest},
		{session.ErrNotConfigured, http.StatusUnauthorized},
		{&catalog.IndexError{Kind: "product"}, http.StatusNotFound},
		{document.ErrConflict, http.StatusConflict},
		{document.ErrUnauthorized, http.StatusForbidden},
		{document.ErrUnavailable, http.StatusBadGateway},
		{document.ErrMalformed, http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	} {
		status, msg := mapError(tt.err)
		assert.Equal(t, tt.want, status, tt.err.Error())
		assert.NotEmpty(t, msg)
	}
}
