package memory

import (
	"context"
	"crypto/sha1" //nolint:gosec // git blob ids are SHA-1
	"encoding/hex"
	"sort"
	"strconv"
	"sync"

	"github.com/go-faster/errors"

	"github.com/vpecom/shop-admin/internal/domain/document"
)

var _ document.Store = (*Store)(nil)

// Commit records a single successful write, in order.
type Commit struct {
	Op      string
	Path    string
	Message string
}

// Store is an in-process document.Store with the same SHA discipline as the
// GitHub Contents API. Nothing is persisted.
type Store struct {
	mu      sync.Mutex
	files   map[string]document.File
	commits []Commit
}

// New returns an empty Store.
func New() *Store {
	return &Store{files: make(map[string]document.File)}
}

// BlobSHA computes the git blob id of content.
func BlobSHA(content []byte) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Get implements document.Store.
func (s *Store) Get(_ context.Context, path string) (document.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[path]
	if !ok {
		return document.File{}, document.ErrNotFound
	}
	return document.File{Content: append([]byte(nil), f.Content...), SHA: f.SHA}, nil
}

// Put implements document.Store.
func (s *Store) Put(_ context.Context, path string, content []byte, sha, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.files[path]
	switch {
	case exists && sha != cur.SHA:
		return "", errors.Wrapf(document.ErrConflict, "%s is at %s", path, cur.SHA)
	case !exists && sha != "":
		return "", errors.Wrapf(document.ErrConflict, "%s does not exist", path)
	}

	f := document.File{Content: append([]byte(nil), content...), SHA: BlobSHA(content)}
	s.files[path] = f
	s.commits = append(s.commits, Commit{Op: "put", Path: path, Message: message})
	return f.SHA, nil
}

// Delete implements document.Store.
func (s *Store) Delete(_ context.Context, path, sha, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.files[path]
	if !ok {
		return document.ErrNotFound
	}
	if sha != cur.SHA {
		return errors.Wrapf(document.ErrConflict, "%s is at %s", path, cur.SHA)
	}
	delete(s.files, path)
	s.commits = append(s.commits, Commit{Op: "delete", Path: path, Message: message})
	return nil
}

// Check implements document.Store.
func (s *Store) Check(context.Context) error { return nil }

// Paths lists every stored path in lexical order.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Commits returns the write log.
func (s *Store) Commits() []Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Commit(nil), s.commits...)
}
