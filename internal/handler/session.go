package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vpecom/shop-admin/internal/domain/catalog"
	"github.com/vpecom/shop-admin/internal/domain/document"
	"github.com/vpecom/shop-admin/internal/session"
)

// Page names inside the pages filesystem.
const (
	SetupPage = "setup.html"
	AdminPage = "admin.html"
)

// Index serves the setup page until a connection is saved, the admin page
// afterwards.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	page := SetupPage
	if h.sessions.Configured() {
		page = AdminPage
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFileFS(w, r, h.pages, page)
}

// Setup validates {"repo": "owner/name", "token": "..."} against GitHub and
// saves it.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)

	var conn session.Connection
	d, err := readBody(w, r)
	if err == nil {
		err = decodeObject(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "repo", "repository":
				conn.Repository, err = decodeString(d)
			case "token":
				conn.Token, err = decodeString(d)
			default:
				err = d.Skip()
			}
			return err
		})
	}
	conn.Repository = strings.Trim(strings.TrimSpace(conn.Repository), "/")
	conn.Token = strings.TrimSpace(conn.Token)
	if err == nil {
		if verr := conn.Validate(); verr != nil {
			err = &catalog.ValidationError{Fields: []string{verr.Error()}}
		}
	}
	if err != nil {
		respond(ctx, w, "setup", err)
		return
	}

	store, err := h.backend(conn)
	if err == nil {
		err = store.Check(ctx)
	}
	if errors.Is(err, document.ErrNotFound) || errors.Is(err, document.ErrUnauthorized) {
		zctx.From(ctx).Warn("Setup rejected", zap.String("repo", conn.Repository), zap.Error(err))
		err = &catalog.ValidationError{Fields: []string{"invalid credentials"}}
	}
	if err == nil {
		err = h.sessions.Save(conn)
	}
	if err == nil {
		zctx.From(ctx).Info("Connection saved", zap.String("repo", conn.Repository))
	}
	respond(ctx, w, "setup", err)
}

// Logout forgets the saved connection.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)
	err := h.sessions.Clear()
	if err == nil {
		zctx.From(ctx).Info("Connection cleared")
	}
	respond(ctx, w, "logout", err)
}
