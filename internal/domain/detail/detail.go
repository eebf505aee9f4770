// Package detail resolves a product page from its slug.
package detail

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// RelatedLimit is the maximum number of related products returned.
const RelatedLimit = 8

// ErrNotFound is returned when the slug does not resolve to a product.
var ErrNotFound = errors.New("product page not found")

// Spec is one row of the specifications table.
type Spec struct {
	Label string
	Value string
}

// Meta is the page metadata used for titles and link previews.
type Meta struct {
	Title       string
	Description string
	Images      []string
}

// Detail is everything the product page shows.
type Detail struct {
	Product     product.Product
	Slug        string
	FinalPrice  decimal.Decimal
	HasDiscount bool
	Images      []string
	Specs       []Spec
	Related     []product.Product
	Meta        Meta
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for degraded related-product lookups.
func WithLogger(lg *zap.Logger) Option {
	return func(r *Resolver) { r.lg = lg }
}

// WithSiteName sets the suffix of page titles.
func WithSiteName(name string) Option {
	return func(r *Resolver) { r.siteName = name }
}

// Resolver builds Details from the catalog.
type Resolver struct {
	repo     product.Repository
	lg       *zap.Logger
	siteName string
}

// NewResolver creates a Resolver backed by repo.
func NewResolver(repo product.Repository, opts ...Option) *Resolver {
	r := &Resolver{
		repo:     repo,
		lg:       zap.NewNop(),
		siteName: "Storefront",
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the page for slug. Unknown or malformed slugs yield
// ErrNotFound. A failing related-products lookup is logged and leaves
// Related empty.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*Detail, error) {
	id, err := pricing.ParseSlugID(slug)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "slug %q", slug)
	}

	p, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "product %d", id)
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}

	images := p.Images
	if len(images) == 0 {
		images = []string{p.Thumbnail}
	}

	return &Detail{
		Product:     *p,
		Slug:        pricing.CreateProductSlug(*p),
		FinalPrice:  pricing.FinalPrice(*p),
		HasDiscount: pricing.HasDiscount(*p),
		Images:      images,
		Specs:       Specs(*p),
		Related:     r.related(ctx, *p),
		Meta: Meta{
			Title:       p.Title + " | " + r.siteName,
			Description: p.Description,
			Images:      images,
		},
	}, nil
}

func (r *Resolver) related(ctx context.Context, p product.Product) []product.Product {
	// One extra so the product itself can be dropped without coming up short.
	page, err := r.repo.ListByCategory(ctx, p.Category, RelatedLimit+1)
	if err != nil {
		r.lg.Warn("Related products unavailable",
			zap.Int("product_id", p.ID),
			zap.String("category", p.Category),
			zap.Error(err),
		)
		return []product.Product{}
	}

	out := make([]product.Product, 0, RelatedLimit)
	for _, rp := range page.Products {
		if len(out) == RelatedLimit {
			break
		}
		if rp.ID != p.ID {
			out = append(out, rp)
		}
	}
	return out
}

// Specs returns the specifications table rows for p.
func Specs(p product.Product) []Spec {
	return []Spec{
		{Label: "Brand", Value: p.Brand},
		{Label: "Category", Value: pricing.CategoryLabel(p.Category)},
		{Label: "Rating", Value: strconv.FormatFloat(p.Rating, 'f', 1, 64)},
		{Label: "Stock", Value: strconv.Itoa(p.Stock)},
		{Label: "Discount", Value: p.DiscountPercentage.Round(0).String() + "%"},
	}
}
