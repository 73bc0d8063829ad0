package github

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/vpecom/shop-admin/internal/domain/document"
)

// StatusError is a non-success answer from the Contents API.
type StatusError struct {
	Op         string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github %s %s: HTTP %d", e.Op, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("github %s %s: HTTP %d: %s", e.Op, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps the status onto the document error taxonomy.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return document.ErrNotFound
	case e.StatusCode == http.StatusConflict, e.StatusCode == http.StatusUnprocessableEntity:
		// 409 is a stale sha; 422 is a create over an existing path.
		return document.ErrConflict
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return document.ErrUnauthorized
	case e.StatusCode >= 500:
		return document.ErrUnavailable
	default:
		return nil
	}
}

// newStatusError drains resp and extracts the API "message" field when present.
func newStatusError(op, path string, resp *http.Response) *StatusError {
	e := &StatusError{Op: op, Path: path, StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return e
	}
	_ = jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "message" && d.Next() == jx.String {
			e.Message, err = d.Str()
			return err
		}
		return d.Skip()
	})
	return e
}
