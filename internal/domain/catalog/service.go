package catalog

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vpecom/shop-admin/internal/domain/asset"
	"github.com/vpecom/shop-admin/internal/domain/document"
)

// IDClock hands out millisecond timestamps that strictly increase, even when
// two calls land in the same millisecond.
type IDClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDClock returns a clock reading now; time.Now when nil.
func NewIDClock(now func() time.Time) *IDClock {
	if now == nil {
		now = time.Now
	}
	return &IDClock{now: now}
}

// Next returns the next id.
func (c *IDClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UnixMilli()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}

// Service runs read-modify-write cycles against the three catalog documents.
// Every operation fetches the current document and SHA, applies one change
// and writes back with that SHA; a concurrent writer makes the write fail
// with document.ErrConflict and nothing is retried.
type Service struct {
	store  document.Store
	assets *asset.Manager
	clock  *IDClock
}

// NewService creates a Service. A nil clock gets a private one.
func NewService(store document.Store, assets *asset.Manager, clock *IDClock) *Service {
	if clock == nil {
		clock = NewIDClock(nil)
	}
	return &Service{
		store:  store,
		assets: assets,
		clock:  clock,
	}
}

// settings is settings.json; keys other than "categories" are carried over
// untouched.
type settings map[string]json.RawMessage

func (s settings) categories() ([]string, error) {
	raw, ok := s["categories"]
	if !ok {
		return []string{}, nil
	}
	var cats []string
	if err := json.Unmarshal(raw, &cats); err != nil {
		return nil, errors.Wrap(err, "decode categories")
	}
	if cats == nil {
		cats = []string{}
	}
	return cats, nil
}

func (s settings) setCategories(cats []string) error {
	if cats == nil {
		cats = []string{}
	}
	raw, err := json.Marshal(cats)
	if err != nil {
		return errors.Wrap(err, "encode categories")
	}
	s["categories"] = raw
	return nil
}

// State fetches the three documents concurrently. Missing documents read as
// empty; a document that cannot be decoded is logged and read as empty too,
// so one broken file does not lock the admin out of the others.
func (s *Service) State(ctx context.Context) (*State, error) {
	st := &State{
		Products:   []Product{},
		Categories: []string{},
		Banners:    []Banner{},
	}
	lg := zctx.From(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := document.Load[[]Product](gctx, s.store, ProductsPath)
		if err = tolerateMalformed(lg, ProductsPath, err); err != nil || doc.Content == nil {
			return err
		}
		st.Products = doc.Content
		return nil
	})
	g.Go(func() error {
		doc, err := document.Load[settings](gctx, s.store, SettingsPath)
		if err = tolerateMalformed(lg, SettingsPath, err); err != nil {
			return err
		}
		cats, err := doc.Content.categories()
		if err != nil {
			lg.Warn("Ignoring malformed categories", zap.Error(err))
			return nil
		}
		st.Categories = cats
		return nil
	})
	g.Go(func() error {
		doc, err := document.Load[[]Banner](gctx, s.store, BannersPath)
		if err = tolerateMalformed(lg, BannersPath, err); err != nil || doc.Content == nil {
			return err
		}
		st.Banners = doc.Content
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	return st, nil
}

func tolerateMalformed(lg *zap.Logger, path string, err error) error {
	if errors.Is(err, document.ErrMalformed) {
		lg.Warn("Ignoring malformed document", zap.String("path", path), zap.Error(err))
		return nil
	}
	return err
}

// UpsertProduct inserts (index == -1) or replaces the product at index.
// Removed images are deleted and new images uploaded before the document is
// written; asset failures do not stop the write and are returned as
// *asset.PartialError alongside the saved product.
func (s *Service) UpsertProduct(ctx context.Context, index int, in ProductInput) (Product, error) {
	if err := validateIndex(index, true); err != nil {
		return Product{}, err
	}
	return s.saveProduct(ctx, index, in, saveOptions{
		suffix:  "img_",
		message: "Update products",
		keep:    true,
	})
}

// BulkInsertProduct always inserts at the front. ExistingImages are kept
// ahead of the uploaded NewImages and RemovedImages are ignored; each call is
// its own read-modify-write cycle.
func (s *Service) BulkInsertProduct(ctx context.Context, in ProductInput) (Product, error) {
	in.RemovedImages = nil
	return s.saveProduct(ctx, -1, in, saveOptions{
		suffix:  "bulk_",
		message: "Bulk upload products",
	})
}

type saveOptions struct {
	suffix  string
	message string
	// keep enables RemovedImages.
	keep bool
}

func (s *Service) saveProduct(ctx context.Context, index int, in ProductInput, opts saveOptions) (Product, error) {
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	lg := zctx.From(ctx)

	doc, err := document.Load[[]Product](ctx, s.store, ProductsPath)
	if err != nil {
		return Product{}, errors.Wrap(err, "load products")
	}
	if index >= len(doc.Content) {
		return Product{}, &IndexError{Kind: "product", Index: index, Len: len(doc.Content)}
	}

	ts := s.clock.Next()

	var deleteErr error
	if opts.keep && len(in.RemovedImages) > 0 {
		deleteErr = s.assets.DeleteAll(ctx, in.RemovedImages)
	}

	uploads := make([]asset.Upload, len(in.NewImages))
	for i, data := range in.NewImages {
		name := asset.DeriveFilename(in.Title, in.Description, ts, opts.suffix+strconv.Itoa(i))
		uploads[i] = asset.Upload{
			Path:    asset.ImagePath(name),
			Data:    data,
			Message: "Upload product image",
		}
	}
	uploaded, uploadErr := s.assets.UploadAll(ctx, uploads)
	if uploadErr != nil {
		var pe *asset.PartialError
		if !errors.As(uploadErr, &pe) {
			return Product{}, errors.Wrap(uploadErr, "upload images")
		}
	}

	images := make([]string, 0, len(in.ExistingImages)+len(uploaded))
	images = append(images, in.ExistingImages...)
	images = append(images, uploaded...)

	p := in.product(ts, images)
	if index == -1 {
		doc.Content = slices.Insert(doc.Content, 0, p)
	} else {
		if id := doc.Content[index].ID; id != 0 {
			p.ID = id
		}
		doc.Content[index] = p
	}

	if _, err := document.Save(ctx, s.store, ProductsPath, doc, opts.message); err != nil {
		return Product{}, errors.Wrap(err, "save products")
	}

	lg.Info("Product saved",
		zap.Int64("id", p.ID),
		zap.Int("index", index),
		zap.Int("images", len(p.Images)),
	)
	return p, asset.MergePartial(deleteErr, uploadErr)
}

// DeleteProduct removes the product at index and every image it references,
// including the legacy single image.
func (s *Service) DeleteProduct(ctx context.Context, index int) error {
	doc, err := document.Load[[]Product](ctx, s.store, ProductsPath)
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	if !doc.Exists() || index < 0 || index >= len(doc.Content) {
		return &IndexError{Kind: "product", Index: index, Len: len(doc.Content)}
	}

	p := doc.Content[index]
	deleteErr := s.assets.DeleteAll(ctx, p.Images)

	doc.Content = slices.Delete(doc.Content, index, index+1)
	if _, err := document.Save(ctx, s.store, ProductsPath, doc, "Delete product"); err != nil {
		return errors.Wrap(err, "save products")
	}

	zctx.From(ctx).Info("Product deleted", zap.Int64("id", p.ID), zap.Int("index", index))
	return asset.MergePartial(deleteErr)
}

// ReplaceCategories overwrites the category list. Duplicates are the
// caller's concern.
func (s *Service) ReplaceCategories(ctx context.Context, cats []string) error {
	return s.updateCategories(ctx, "Update categories", func([]string) ([]string, error) {
		return cats, nil
	})
}

// AddCategory appends name unless it is already present.
func (s *Service) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Fields: []string{"category name is required"}}
	}
	return s.updateCategories(ctx, "Add category", func(cats []string) ([]string, error) {
		if slices.Contains(cats, name) {
			return nil, &ValidationError{Fields: []string{"category " + strconv.Quote(name) + " already exists"}}
		}
		return append(cats, name), nil
	})
}

// RemoveCategory drops the category at index.
func (s *Service) RemoveCategory(ctx context.Context, index int) error {
	return s.updateCategories(ctx, "Remove category", func(cats []string) ([]string, error) {
		if index < 0 || index >= len(cats) {
			return nil, &IndexError{Kind: "category", Index: index, Len: len(cats)}
		}
		return slices.Delete(cats, index, index+1), nil
	})
}

func (s *Service) updateCategories(ctx context.Context, message string, apply func([]string) ([]string, error)) error {
	doc, err := document.Load[settings](ctx, s.store, SettingsPath)
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	if doc.Content == nil {
		doc.Content = settings{}
	}

	cats, err := doc.Content.categories()
	if err != nil {
		return err
	}
	cats, err = apply(cats)
	if err != nil {
		return err
	}
	if err := doc.Content.setCategories(cats); err != nil {
		return err
	}

	if _, err := document.Save(ctx, s.store, SettingsPath, doc, message); err != nil {
		return errors.Wrap(err, "save settings")
	}
	zctx.From(ctx).Info("Categories saved", zap.Int("count", len(cats)))
	return nil
}

// AddBanner uploads the image and appends the banner.
func (s *Service) AddBanner(ctx context.Context, image []byte, link string) (Banner, error) {
	if len(image) == 0 {
		return Banner{}, &ValidationError{Fields: []string{"image is required"}}
	}
	link = strings.TrimSpace(link)

	doc, err := document.Load[[]Banner](ctx, s.store, BannersPath)
	if err != nil {
		return Banner{}, errors.Wrap(err, "load banners")
	}

	label := link
	if label == "" {
		label = "banner"
	}
	name := asset.DeriveFilename("banner", label, s.clock.Next(), "banner")
	url, err := s.assets.Upload(ctx, asset.Upload{
		Path:    asset.BannerPath(name),
		Data:    image,
		Message: "Upload banner image",
	})
	if err != nil {
		return Banner{}, err
	}

	b := Banner{Image: url, Link: link}
	doc.Content = append(doc.Content, b)
	if _, err := document.Save(ctx, s.store, BannersPath, doc, "Add banner"); err != nil {
		return Banner{}, errors.Wrap(err, "save banners")
	}

	zctx.From(ctx).Info("Banner added", zap.String("image", url))
	return b, nil
}

// DeleteBanner removes the banner at index and its image.
func (s *Service) DeleteBanner(ctx context.Context, index int) error {
	doc, err := document.Load[[]Banner](ctx, s.store, BannersPath)
	if err != nil {
		return errors.Wrap(err, "load banners")
	}
	if !doc.Exists() || index < 0 || index >= len(doc.Content) {
		return &IndexError{Kind: "banner", Index: index, Len: len(doc.Content)}
	}

	deleteErr := s.assets.DeleteAll(ctx, []string{doc.Content[index].Image})

	doc.Content = slices.Delete(doc.Content, index, index+1)
	if _, err := document.Save(ctx, s.store, BannersPath, doc, "Delete banner"); err != nil {
		return errors.Wrap(err, "save banners")
	}

	zctx.From(ctx).Info("Banner deleted", zap.Int("index", index))
	return asset.MergePartial(deleteErr)
}

func validateIndex(index int, allowAppend bool) error {
	if index < 0 && !(allowAppend && index == -1) {
		return &ValidationError{Fields: []string{"index must be -1 or a position"}}
	}
	return nil
}

func (in ProductInput) validate() error {
	var v ValidationError
	if strings.TrimSpace(in.Title) == "" {
		v.add("title is required")
	}
	if in.Price.IsNegative() {
		v.add("price must not be negative")
	}
	if in.Offer < 0 || in.Offer > 100 {
		v.add("offer must be between 0 and 100")
	}
	for i, img := range in.NewImages {
		if len(img) == 0 {
			v.add("newImages[" + strconv.Itoa(i) + "] is empty")
		}
	}
	return v.orNil()
}

func (in ProductInput) product(id int64, images []string) Product {
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}
	p := Product{
		ID:          id,
		Title:       in.Title,
		Price:       NewPrice(in.Price),
		Category:    category,
		Offer:       Percent(in.Offer),
		Description: in.Description,
		BuyLink:     in.BuyLink,
		Images:      images,
	}
	p.Image = p.PrimaryImage()
	return p
}
