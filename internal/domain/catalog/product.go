package catalog

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Catalog document paths inside the repository.
const (
	ProductsPath = "all_products.json"
	SettingsPath = "settings.json"
	BannersPath  = "banners.json"
)

// DefaultCategory is used when a product arrives without one.
const DefaultCategory = "General"

// Price is a decimal amount committed as a bare JSON number.
type Price struct {
	decimal.Decimal
}

// NewPrice wraps d.
func NewPrice(d decimal.Decimal) Price { return Price{Decimal: d} }

// MarshalJSON implements json.Marshaler.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts numbers and numeric strings; null and "" read as zero.
func (p *Price) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		p.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.Wrapf(err, "price %s", data)
	}
	p.Decimal = d
	return nil
}

// Percent is a whole percentage that older documents sometimes store as a
// string.
type Percent int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Percent) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.Wrapf(err, "percent %s", data)
	}
	*p = Percent(d.IntPart())
	return nil
}

// Product is one entry of all_products.json.
type Product struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Price       Price    `json:"price"`
	Category    string   `json:"category"`
	Offer       Percent  `json:"offer"`
	Description string   `json:"description"`
	BuyLink     string   `json:"buyLink"`
	Images      []string `json:"images"`
	// Image mirrors Images[0] for storefronts that predate the list.
	Image string `json:"image"`
}

// PrimaryImage is the first image or "".
func (p Product) PrimaryImage() string {
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}

// UnmarshalJSON accepts legacy records that only carry "image".
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Product(v)
	p.normalize()
	return nil
}

// MarshalJSON always writes both image representations.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	p.normalize()
	return json.Marshal(plain(p))
}

func (p *Product) normalize() {
	if len(p.Images) == 0 && p.Image != "" {
		p.Images = []string{p.Image}
	}
	if p.Image != "" && !slices.Contains(p.Images, p.Image) {
		// A legacy image the list lost track of stays referenced.
		p.Images = append(p.Images, p.Image)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	p.Image = p.PrimaryImage()
}

// Banner is one entry of banners.json. An empty Link is not clickable.
type Banner struct {
	Image string `json:"image"`
	Link  string `json:"link"`
}

// ProductInput is a product change as submitted by the admin.
type ProductInput struct {
	Title       string
	Price       decimal.Decimal
	Category    string
	Offer       int
	Description string
	BuyLink     string

	// ExistingImages are kept in their order, NewImages are uploaded and
	// appended, RemovedImages are deleted from the repository.
	ExistingImages []string
	NewImages      [][]byte
	RemovedImages  []string
}

// State is the whole catalog as seen by the admin console.
type State struct {
	Products   []Product
	Categories []string
	Banners    []Banner
}
