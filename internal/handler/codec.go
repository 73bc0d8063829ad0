package handler

import (
	"encoding/base64"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/vpecom/shop-admin/internal/domain/catalog"
)

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("malformed request")

func badRequest(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

// readBody returns the bounded request body as a decoder.
func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest("read body: %v", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, badRequest("empty body")
	}
	return jx.DecodeBytes(data), nil
}

// decodeObject walks a JSON object and hands each key to field.
func decodeObject(d *jx.Decoder, field func(d *jx.Decoder, key string) error) error {
	if d.Next() != jx.Object {
		return badRequest("expected a JSON object")
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return field(d, string(key))
	}); err != nil {
		if errors.Is(err, errBadRequest) {
			return err
		}
		return badRequest("%v", err)
	}
	return nil
}

// decodeString reads a string; null reads as "".
func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	default:
		return "", badRequest("expected a string")
	}
}

// decodeNumeric reads a number or a numeric string as text.
func decodeNumeric(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.String:
		s, err := d.Str()
		return strings.TrimSpace(s), err
	default:
		return "", badRequest("expected a number")
	}
}

func decodeDecimal(d *jx.Decoder, name string) (decimal.Decimal, error) {
	s, err := decodeNumeric(d)
	if err != nil || s == "" {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, badRequest("%s: %q is not a number", name, s)
	}
	return v, nil
}

// Bounds of indexes accepted from clients; int32 keeps the conversion
// lossless on every platform.
var (
	minIndex = decimal.NewFromInt(math.MinInt32)
	maxIndex = decimal.NewFromInt(math.MaxInt32)
)

// decodeInt reads a whole number; null and "" yield def.
func decodeInt(d *jx.Decoder, name string, def int) (int, error) {
	s, err := decodeNumeric(d)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil || !v.IsInteger() {
		return 0, badRequest("%s: %q is not a whole number", name, s)
	}
	if v.LessThan(minIndex) || v.GreaterThan(maxIndex) {
		return 0, badRequest("%s: %q is out of range", name, s)
	}
	return int(v.IntPart()), nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := decodeString(d)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// decodeImage decodes a base64 image, optionally wrapped in a data: URL.
func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, badRequest("malformed data URL")
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, badRequest("image is not valid base64: %v", err)
	}
	return data, nil
}

func decodeProduct(d *jx.Decoder) (catalog.ProductInput, error) {
	var (
		in       catalog.ProductInput
		desc     string
		hasDesc  bool
		newImage []string
	)
	err := decodeObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "title":
			in.Title, err = decodeString(d)
		case "price":
			in.Price, err = decodeDecimal(d, "price")
		case "category":
			in.Category, err = decodeString(d)
		case "offer":
			in.Offer, err = decodeInt(d, "offer", 0)
		case "description":
			in.Description, err = decodeString(d)
			hasDesc = true
		case "desc":
			desc, err = decodeString(d)
		case "link", "buyLink":
			in.BuyLink, err = decodeString(d)
		case "existingImages":
			in.ExistingImages, err = decodeStrings(d)
		case "newImages":
			newImage, err = decodeStrings(d)
		case "removedImages":
			in.RemovedImages, err = decodeStrings(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return in, err
	}
	if !hasDesc {
		in.Description = desc
	}

	for i, s := range newImage {
		img, err := decodeImage(s)
		if err != nil {
			return in, errors.Wrapf(err, "newImages[%d]", i)
		}
		in.NewImages = append(in.NewImages, img)
	}
	return in, nil
}

// encodeResult writes {"success":...,"error":...,"partial":...}.
func encodeResult(e *jx.Encoder, errMsg string, partial bool) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(errMsg == "") })
		if errMsg != "" {
			e.Field("error", func(e *jx.Encoder) { e.Str(errMsg) })
		}
		if partial {
			e.Field("partial", func(e *jx.Encoder) { e.Bool(true) })
		}
	})
}

func encodeState(e *jx.Encoder, st *catalog.State) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range st.Products {
					encodeProduct(e, p)
				}
			})
		})
		e.Field("categories", func(e *jx.Encoder) { encodeStrings(e, st.Categories) })
		e.Field("banners", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, b := range st.Banners {
					e.Obj(func(e *jx.Encoder) {
						e.Field("image", func(e *jx.Encoder) { e.Str(b.Image) })
						e.Field("link", func(e *jx.Encoder) { e.Str(b.Link) })
					})
				}
			})
		})
	})
}

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		e.Field("price", func(e *jx.Encoder) { e.Raw([]byte(p.Price.String())) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("offer", func(e *jx.Encoder) { e.Int(int(p.Offer)) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("buyLink", func(e *jx.Encoder) { e.Str(p.BuyLink) })
		e.Field("images", func(e *jx.Encoder) { encodeStrings(e, p.Images) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.PrimaryImage()) })
	})
}

func encodeStrings(e *jx.Encoder, ss []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range ss {
			e.Str(s)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(e.Bytes())))
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
