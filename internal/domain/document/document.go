// Package document defines the versioned whole-file store the catalog is kept
// in. A file is always read and replaced as a unit; every replace or delete
// must present the blob SHA observed at read time.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors shared by every Store implementation.
var (
	// ErrNotFound is returned when the path does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when the supplied SHA does not match the
	// current blob, or when creating a path that already exists.
	ErrConflict = errors.New("document version conflict")
	// ErrUnavailable wraps transport failures and timeouts.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrUnauthorized is returned when the store rejects the credentials.
	ErrUnauthorized = errors.New("document store rejected credentials")
	// ErrMalformed is returned by Load when the file is not valid JSON for T.
	ErrMalformed = errors.New("document is malformed")
)

// File is a raw file as held by the store.
type File struct {
	Content []byte
	SHA     string
}

// Store is a path-keyed store of whole files guarded by blob SHAs.
type Store interface {
	// Get returns the file content and its current SHA.
	Get(ctx context.Context, path string) (File, error)
	// Put creates (sha == "") or replaces the file and returns the new SHA.
	Put(ctx context.Context, path string, content []byte, sha, message string) (string, error)
	// Delete removes the file; sha must be current.
	Delete(ctx context.Context, path, sha, message string) error
	// Check verifies that the store is reachable with the configured credentials.
	Check(ctx context.Context) error
}

// Document is a decoded file together with the SHA it was read at.
// An empty SHA means the file does not exist yet.
type Document[T any] struct {
	Content T
	SHA     string
}

// Exists reports whether the document was read from an existing file.
func (d Document[T]) Exists() bool {
	return d.SHA != ""
}

// Load reads and decodes path. A missing file yields the zero value of T and
// an empty SHA, so the next Save creates it.
func Load[T any](ctx context.Context, s Store, path string) (Document[T], error) {
	var doc Document[T]

	f, err := s.Get(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return doc, nil
		}
		return doc, errors.Wrapf(err, "get %s", path)
	}

	if len(bytes.TrimSpace(f.Content)) > 0 {
		if err := json.Unmarshal(f.Content, &doc.Content); err != nil {
			return doc, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
		}
	}
	doc.SHA = f.SHA
	return doc, nil
}

// Save encodes doc.Content and writes it back with the SHA captured by Load.
// The returned document carries the new SHA.
func Save[T any](ctx context.Context, s Store, path string, doc Document[T], message string) (Document[T], error) {
	data, err := Encode(doc.Content)
	if err != nil {
		return doc, errors.Wrapf(err, "encode %s", path)
	}

	sha, err := s.Put(ctx, path, data, doc.SHA, message)
	if err != nil {
		return doc, errors.Wrapf(err, "put %s", path)
	}
	doc.SHA = sha
	return doc, nil
}

// Encode renders v the way catalog documents are committed: two-space
// indented JSON without HTML escaping.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
