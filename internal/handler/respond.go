package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vpecom/shop-admin/internal/domain/asset"
	"github.com/vpecom/shop-admin/internal/domain/catalog"
	"github.com/vpecom/shop-admin/internal/domain/document"
	"github.com/vpecom/shop-admin/internal/session"
)

// respond converts the outcome of an operation into the {"success": ...}
// body. Errors stop here; the UI only ever sees a flag and a message.
func respond(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var e jx.Encoder
	if err == nil {
		encodeResult(&e, "", false)
		writeJSON(w, http.StatusOK, &e)
		return
	}

	status, msg := mapError(err)
	var partial *asset.PartialError
	isPartial := errors.As(err, &partial)

	lg := zctx.From(ctx).With(zap.String("op", op), zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		lg.Error("Operation failed", zap.Error(err))
	} else {
		lg.Warn("Operation rejected", zap.Error(err))
	}

	encodeResult(&e, msg, isPartial)
	writeJSON(w, status, &e)
}

// mapError picks the status code and the message shown to the operator.
func mapError(err error) (int, string) {
	var (
		validation *catalog.ValidationError
		partial    *asset.PartialError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrNotConfigured):
		return http.StatusUnauthorized, "connection is not configured, run setup first"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &partial):
		// The catalog document was written; only some images failed.
		return http.StatusBadGateway, "saved, but some images need manual cleanup: " + partial.Error()
	case errors.Is(err, document.ErrConflict):
		return http.StatusConflict, "catalog changed since it was read, reload and try again"
	case errors.Is(err, document.ErrUnauthorized):
		return http.StatusForbidden, "GitHub rejected the access token"
	case errors.Is(err, document.ErrUnavailable):
		return http.StatusBadGateway, "GitHub is unavailable, try again"
	case errors.Is(err, document.ErrMalformed):
		return http.StatusInternalServerError, "a catalog document is malformed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
