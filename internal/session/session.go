// Package session keeps the repository connection the admin configured at
// setup. Its presence on disk is what separates setup mode from normal
// operation.
package session

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
)

// ErrNotConfigured is returned when no connection has been saved.
var ErrNotConfigured = errors.New("connection is not configured")

// Connection identifies the catalog repository and the token used to write it.
type Connection struct {
	// Repository is "owner/name".
	Repository string `toml:"repository"`
	Token      string `toml:"token"`
}

// Validate checks the shape of the connection without contacting GitHub.
func (c Connection) Validate() error {
	owner, name, ok := strings.Cut(c.Repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return errors.Errorf("repository %q must look like owner/name", c.Repository)
	}
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("token is required")
	}
	return nil
}

// Store reads and writes the connection file.
type Store struct {
	path string
}

// NewStore returns a Store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path is the backing file.
func (s *Store) Path() string { return s.path }

// Load returns the saved connection or ErrNotConfigured.
func (s *Store) Load() (Connection, error) {
	var c Connection

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, ErrNotConfigured
		}
		return c, errors.Wrap(err, "read session")
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(err, "parse session")
	}
	if c.Repository == "" {
		return c, ErrNotConfigured
	}
	return c, nil
}

// Configured reports whether Load would return a connection.
func (s *Store) Configured() bool {
	_, err := s.Load()
	return err == nil
}

// Save writes c, readable by the current user only.
func (s *Store) Save(c Connection) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return errors.Wrap(err, "encode session")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return errors.Wrap(err, "write session")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "replace session")
	}
	return nil
}

// Clear removes the saved connection. Clearing twice is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove session")
	}
	return nil
}
