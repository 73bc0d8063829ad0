package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vpecom/shop-admin/internal/domain/catalog"
	"github.com/vpecom/shop-admin/internal/session"
)

// GetData returns products, categories and banners. In setup mode the body
// is an empty object.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)

	svc, err := h.service()
	if errors.Is(err, session.ErrNotConfigured) {
		var e jx.Encoder
		e.ObjEmpty()
		writeJSON(w, http.StatusOK, &e)
		return
	}
	if err != nil {
		respond(ctx, w, "get-data", err)
		return
	}

	st, err := svc.State(ctx)
	if err != nil {
		status, msg := mapError(err)
		zctx.From(ctx).Error("Load catalog failed", zap.Error(err))

		var e jx.Encoder
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
			e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
			e.Field("products", func(e *jx.Encoder) { e.ArrEmpty() })
			e.Field("categories", func(e *jx.Encoder) { e.ArrEmpty() })
			e.Field("banners", func(e *jx.Encoder) { e.ArrEmpty() })
		})
		writeJSON(w, status, &e)
		return
	}

	var e jx.Encoder
	encodeState(&e, st)
	writeJSON(w, http.StatusOK, &e)
}

// UpdateCategories replaces the category list: {"categories": [...]}.
func (h *Handler) UpdateCategories(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)

	var (
		cats []string
		seen bool
	)
	d, err := readBody(w, r)
	if err == nil {
		err = decodeObject(d, func(d *jx.Decoder, key string) error {
			if key != "categories" {
				return d.Skip()
			}
			seen = true
			var err error
			cats, err = decodeStrings(d)
			return err
		})
	}
	if err == nil && !seen {
		err = badRequest("categories is required")
	}
	if err != nil {
		respond(ctx, w, "update-cats", err)
		return
	}

	svc, err := h.service()
	if err == nil {
		err = svc.ReplaceCategories(ctx, cats)
	}
	respond(ctx, w, "update-cats", err)
}

// UploadProduct creates or edits a product: {"editIndex": n, "product": {...}}.
func (h *Handler) UploadProduct(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)

	index, in, err := decodeUpload(w, r)
	if err != nil {
		respond(ctx, w, "upload", err)
		return
	}

	svc, err := h.service()
	if err == nil {
		_, err = svc.UpsertProduct(ctx, index, in)
	}
	respond(ctx, w, "upload", err)
}

// UploadBulk inserts one product of a bulk batch: {"product": {...}}.
// The UI sends rows one at a time.
func (h *Handler) UploadBulk(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)

	_, in, err := decodeUpload(w, r)
	if err != nil {
		respond(ctx, w, "upload-bulk", err)
		return
	}

	svc, err := h.service()
	if err == nil {
		_, err = svc.BulkInsertProduct(ctx, in)
	}
	respond(ctx, w, "upload-bulk", err)
}

func decodeUpload(w http.ResponseWriter, r *http.Request) (int, catalog.ProductInput, error) {
	var (
		index = -1
		in    catalog.ProductInput
		seen  bool
	)
	d, err := readBody(w, r)
	if err != nil {
		return index, in, err
	}
	err = decodeObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "editIndex":
			index, err = decodeInt(d, "editIndex", -1)
		case "product":
			seen = true
			in, err = decodeProduct(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && !seen {
		err = badRequest("product is required")
	}
	return index, in, err
}

// DeleteProduct removes a product and its images: {"index": n}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)

	index, err := decodeIndex(w, r)
	if err != nil {
		respond(ctx, w, "delete", err)
		return
	}

	svc, err := h.service()
	if err == nil {
		err = svc.DeleteProduct(ctx, index)
	}
	respond(ctx, w, "delete", err)
}

// UploadBanner adds a banner: {"image": "<base64>", "link": "..."}.
func (h *Handler) UploadBanner(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)

	var image, link string
	d, err := readBody(w, r)
	if err == nil {
		err = decodeObject(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "image":
				image, err = decodeString(d)
			case "link":
				link, err = decodeString(d)
			default:
				err = d.Skip()
			}
			return err
		})
	}
	if err == nil && image == "" {
		err = &catalog.ValidationError{Fields: []string{"image is required"}}
	}
	var data []byte
	if err == nil {
		data, err = decodeImage(image)
	}
	if err != nil {
		respond(ctx, w, "upload-banner", err)
		return
	}

	svc, err := h.service()
	if err == nil {
		_, err = svc.AddBanner(ctx, data, link)
	}
	respond(ctx, w, "upload-banner", err)
}

// DeleteBanner removes a banner and its image: {"index": n}.
func (h *Handler) DeleteBanner(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)

	index, err := decodeIndex(w, r)
	if err != nil {
		respond(ctx, w, "delete-banner", err)
		return
	}

	svc, err := h.service()
	if err == nil {
		err = svc.DeleteBanner(ctx, index)
	}
	respond(ctx, w, "delete-banner", err)
}

func decodeIndex(w http.ResponseWriter, r *http.Request) (int, error) {
	var (
		index = -1
		seen  bool
	)
	d, err := readBody(w, r)
	if err != nil {
		return index, err
	}
	err = decodeObject(d, func(d *jx.Decoder, key string) error {
		if key != "index" {
			return d.Skip()
		}
		seen = true
		var err error
		index, err = decodeInt(d, "index", -1)
		return err
	})
	if err == nil && !seen {
		err = badRequest("index is required")
	}
	return index, err
}
