// Package asset uploads and removes binary images stored next to the catalog
// documents, and derives their names and public URLs.
package asset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vpecom/shop-admin/internal/domain/document"
)

// DefaultThrottle spaces consecutive uploads to stay clear of secondary rate
// limits on the backing API.
const DefaultThrottle = 300 * time.Millisecond

// Failure describes one asset that could not be uploaded or deleted.
type Failure struct {
	Op   string
	Path string
	Err  error
}

// PartialError reports asset operations that failed while the surrounding
// catalog change went ahead. Nothing is rolled back.
type PartialError struct {
	Failures []Failure
}

func (e *PartialError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s %s: %v", f.Op, f.Path, f.Err)
	}
	return fmt.Sprintf("%d asset operation(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// MergePartial combines the failures of every *PartialError in errs. It
// returns nil when there are none.
func MergePartial(errs ...error) error {
	var merged PartialError
	for _, err := range errs {
		var pe *PartialError
		if errors.As(err, &pe) {
			merged.Failures = append(merged.Failures, pe.Failures...)
		}
	}
	if len(merged.Failures) == 0 {
		return nil
	}
	return &merged
}

// Upload is one image to write.
type Upload struct {
	Path    string
	Data    []byte
	Message string
}

// Manager writes and removes image files through a document.Store.
type Manager struct {
	store    document.Store
	loc      Location
	throttle time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes a Manager.
type Option func(*Manager)

// WithThrottle overrides DefaultThrottle. Zero disables the delay.
func WithThrottle(d time.Duration) Option {
	return func(m *Manager) { m.throttle = d }
}

// NewManager creates a Manager for the repository described by loc.
func NewManager(store document.Store, loc Location, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		loc:      loc,
		throttle: DefaultThrottle,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Location returns the URL mapping used by the manager.
func (m *Manager) Location() Location { return m.loc }

// Upload creates the file at path and returns its public URL. The URL is
// built from the location, not taken from the store response.
func (m *Manager) Upload(ctx context.Context, u Upload) (string, error) {
	if _, err := m.store.Put(ctx, u.Path, u.Data, "", u.Message); err != nil {
		return "", errors.Wrapf(err, "upload %s", u.Path)
	}
	zctx.From(ctx).Info("Uploaded asset", zap.String("path", u.Path), zap.Int("bytes", len(u.Data)))
	return m.loc.URL(u.Path), nil
}

// UploadAll uploads sequentially, pausing between uploads. URLs of the
// successful uploads are returned in upload order; failures are collected in
// a *PartialError.
func (m *Manager) UploadAll(ctx context.Context, uploads []Upload) ([]string, error) {
	urls := make([]string, 0, len(uploads))
	var failures []Failure

	for i, u := range uploads {
		if i > 0 && m.throttle > 0 {
			if err := m.sleep(ctx, m.throttle); err != nil {
				return urls, errors.Wrap(err, "throttle")
			}
		}
		url, err := m.Upload(ctx, u)
		if err != nil {
			zctx.From(ctx).Warn("Asset upload failed", zap.String("path", u.Path), zap.Error(err))
			failures = append(failures, Failure{Op: "upload", Path: u.Path, Err: err})
			continue
		}
		urls = append(urls, url)
	}

	if len(failures) > 0 {
		return urls, &PartialError{Failures: failures}
	}
	return urls, nil
}

// Delete removes the file behind url. URLs outside the repository are
// skipped (deleted == false, nil error); a file that is already gone counts
// as deleted.
func (m *Manager) Delete(ctx context.Context, url string) (deleted bool, err error) {
	p, ok := m.loc.PathFromURL(url)
	if !ok {
		zctx.From(ctx).Debug("Skipping foreign asset", zap.String("url", url))
		return false, nil
	}

	f, err := m.store.Get(ctx, p)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return true, nil
		}
		return false, errors.Wrapf(err, "stat %s", p)
	}
	if err := m.store.Delete(ctx, p, f.SHA, "Delete file: "+p); err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return true, nil
		}
		return false, errors.Wrapf(err, "delete %s", p)
	}

	zctx.From(ctx).Info("Deleted asset", zap.String("path", p))
	return true, nil
}

// DeleteAll deletes every URL, continuing past failures.
func (m *Manager) DeleteAll(ctx context.Context, urls []string) error {
	var failures []Failure
	for _, u := range urls {
		if _, err := m.Delete(ctx, u); err != nil {
			zctx.From(ctx).Warn("Asset delete failed", zap.String("url", u), zap.Error(err))
			failures = append(failures, Failure{Op: "delete", Path: u, Err: err})
		}
	}
	if len(failures) > 0 {
		return &PartialError{Failures: failures}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
