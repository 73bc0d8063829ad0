package handler

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/vpecom/shop-admin/internal/domain/asset"
	"github.com/vpecom/shop-admin/internal/domain/catalog"
	"github.com/vpecom/shop-admin/internal/domain/document"
	"github.com/vpecom/shop-admin/internal/session"
)

// maxBodyBytes bounds request bodies; product payloads carry base64 images.
const maxBodyBytes = 64 << 20

// Backend opens the document store for a saved connection.
type Backend func(conn session.Connection) (document.Store, error)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// RawHost and Branch build public image URLs.
	RawHost string
	Branch  string
	// UploadThrottle spaces image uploads within one request.
	UploadThrottle time.Duration
}

// Handler serves the admin pages and the JSON API. The connection is read
// from the session store on every request and passed down explicitly.
type Handler struct {
	sessions *session.Store
	backend  Backend
	clock    *catalog.IDClock
	pages    fs.FS

	rawHost  string
	branch   string
	throttle time.Duration
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	cfg HandlerConfig,
	sessions *session.Store,
	backend Backend,
	clock *catalog.IDClock,
	pages fs.FS,
) *Handler {
	if cfg.RawHost == "" {
		cfg.RawHost = asset.DefaultRawHost
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	return &Handler{
		sessions: sessions,
		backend:  backend,
		clock:    clock,
		pages:    pages,
		rawHost:  cfg.RawHost,
		branch:   cfg.Branch,
		throttle: cfg.UploadThrottle,
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)

	mux.HandleFunc("POST /api/setup", h.Setup)
	mux.HandleFunc("GET /api/logout", h.Logout)
	mux.HandleFunc("POST /api/logout", h.Logout)

	mux.HandleFunc("GET /api/get-data", h.GetData)
	mux.HandleFunc("POST /api/update-cats", h.UpdateCategories)
	mux.HandleFunc("POST /api/upload", h.UploadProduct)
	mux.HandleFunc("POST /api/upload-bulk", h.UploadBulk)
	mux.HandleFunc("POST /api/delete", h.DeleteProduct)
	mux.HandleFunc("POST /api/upload-banner", h.UploadBanner)
	mux.HandleFunc("POST /api/delete-banner", h.DeleteBanner)
}

// service builds the catalog service for the saved connection.
func (h *Handler) service() (*catalog.Service, error) {
	conn, err := h.sessions.Load()
	if err != nil {
		return nil, err
	}
	store, err := h.backend(conn)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	loc := asset.Location{
		RawHost:    h.rawHost,
		Repository: conn.Repository,
		Branch:     h.branch,
	}
	assets := asset.NewManager(store, loc, asset.WithThrottle(h.throttle))
	return catalog.NewService(store, assets, h.clock), nil
}

// detach keeps request values (logger, request id) but drops cancellation,
// so a closed browser tab does not abort a read-modify-write half way.
// Every remote call still carries its own timeout.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
