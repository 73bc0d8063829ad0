package app

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vpecom/shop-admin/internal/domain/asset"
	"github.com/vpecom/shop-admin/internal/domain/catalog"
	"github.com/vpecom/shop-admin/internal/domain/document"
	"github.com/vpecom/shop-admin/internal/handler"
	"github.com/vpecom/shop-admin/internal/session"
	"github.com/vpecom/shop-admin/internal/storage/github"
	"github.com/vpecom/shop-admin/internal/storage/memory"
)

// NewBackend returns the store factory selected by cfg.Backend. The memory
// backend shares one store across connections.
func NewBackend(cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider) (handler.Backend, error) {
	switch cfg.Backend {
	case BackendMemory:
		store := memory.New()
		return func(session.Connection) (document.Store, error) {
			return store, nil
		}, nil
	case BackendGitHub:
		return func(conn session.Connection) (document.Store, error) {
			return github.New(github.Options{
				Repository:     conn.Repository,
				Token:          conn.Token,
				APIURL:         cfg.GitHub.APIURL,
				Branch:         cfg.GitHub.Branch,
				ReadTimeout:    cfg.GitHub.ReadTimeout,
				WriteTimeout:   cfg.GitHub.WriteTimeout,
				TracerProvider: tp,
				MeterProvider:  mp,
			})
		}, nil
	default:
		return nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}
}

// OpenCatalog builds a catalog service for the saved connection.
func OpenCatalog(cfg *Config, backend handler.Backend, clock *catalog.IDClock) (*catalog.Service, error) {
	conn, err := session.NewStore(cfg.SessionFile).Load()
	if err != nil {
		return nil, err
	}
	store, err := backend(conn)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	loc := asset.Location{
		RawHost:    cfg.GitHub.RawHost,
		Repository: conn.Repository,
		Branch:     cfg.GitHub.Branch,
	}
	return catalog.NewService(store, asset.NewManager(store, loc, asset.WithThrottle(cfg.GitHub.UploadDelay)), clock), nil
}
