// Package category lists the products of one catalog category with a
// client-side sort order.
package category

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

// DefaultLimit is the number of products requested for a category.
const DefaultLimit = 100

// Category is one entry of the fixed navigation list.
type Category struct {
	Name string
	Slug string
}

// All is the fixed list of categories shown in navigation.
var All = []Category{
	{Name: "Smartphones", Slug: "smartphones"},
	{Name: "Laptops", Slug: "laptops"},
	{Name: "Fragrances", Slug: "fragrances"},
	{Name: "Skincare", Slug: "skincare"},
	{Name: "Groceries", Slug: "groceries"},
	{Name: "Home Decoration", Slug: "home-decoration"},
	{Name: "Furniture", Slug: "furniture"},
	{Name: "Tops", Slug: "tops"},
	{Name: "Womens Dresses", Slug: "womens-dresses"},
	{Name: "Womens Shoes", Slug: "womens-shoes"},
	{Name: "Mens Shirts", Slug: "mens-shirts"},
	{Name: "Mens Shoes", Slug: "mens-shoes"},
	{Name: "Mens Watches", Slug: "mens-watches"},
	{Name: "Womens Watches", Slug: "womens-watches"},
	{Name: "Womens Bags", Slug: "womens-bags"},
	{Name: "Womens Jewellery", Slug: "womens-jewellery"},
}

// Lookup returns the category with the given slug.
func Lookup(slug string) (Category, bool) {
	i := slices.IndexFunc(All, func(c Category) bool { return c.Slug == slug })
	if i < 0 {
		return Category{}, false
	}
	return All[i], true
}

// Heading is the page title for a category slug: hyphens become spaces and
// the result is upper-cased.
func Heading(slug string) string {
	return strings.ToUpper(strings.ReplaceAll(slug, "-", " "))
}

// SortOrder selects how listing products are ordered.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price-asc"
	SortPriceDesc SortOrder = "price-desc"
	SortRating    SortOrder = "rating"
)

// ErrUnknownSort is returned by ParseSortOrder for unrecognized values.
var ErrUnknownSort = errors.New("unknown sort order")

// ParseSortOrder validates s. An empty string selects SortNewest.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case "":
		return SortNewest, nil
	case SortNewest, SortPriceAsc, SortPriceDesc, SortRating:
		return o, nil
	default:
		return "", errors.Wrapf(ErrUnknownSort, "%q", s)
	}
}

// Sorted returns a stably sorted copy of products. SortNewest keeps the
// order the catalog returned.
func Sorted(products []product.Product, order SortOrder) []product.Product {
	out := slices.Clone(products)
	switch order {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b product.Product) int { return a.Price.Cmp(b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b product.Product) int { return b.Price.Cmp(a.Price) })
	case SortRating:
		slices.SortStableFunc(out, func(a, b product.Product) int {
			switch {
			case a.Rating > b.Rating:
				return -1
			case a.Rating < b.Rating:
				return 1
			default:
				return 0
			}
		})
	}
	return out
}

// State of a listing.
type State int

const (
	Loading State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Option configures a Listing.
type Option func(*Listing)

// WithLogger sets the logger used to report fetch failures.
func WithLogger(lg *zap.Logger) Option {
	return func(l *Listing) { l.lg = lg }
}

// WithLimit overrides DefaultLimit.
func WithLimit(n int) Option {
	return func(l *Listing) { l.limit = n }
}

// Listing holds the products of one category and the selected sort order.
type Listing struct {
	repo  product.Repository
	slug  string
	limit int
	lg    *zap.Logger

	mu       sync.Mutex
	state    State
	err      error
	products []product.Product
	order    SortOrder
}

// NewListing returns a listing for slug in the Loading state.
func NewListing(repo product.Repository, slug string, opts ...Option) *Listing {
	l := &Listing{
		repo:  repo,
		slug:  slug,
		limit: DefaultLimit,
		lg:    zap.NewNop(),
		order: SortNewest,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Slug returns the category slug of the listing.
func (l *Listing) Slug() string { return l.slug }

// Load fetches the category once. On failure the listing moves to Failed
// and keeps the error.
func (l *Listing) Load(ctx context.Context) error {
	page, err := l.repo.ListByCategory(ctx, l.slug, l.limit)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.lg.Warn("Load category failed", zap.String("category", l.slug), zap.Error(err))
		l.state = Failed
		l.err = errors.Wrapf(err, "load category %s", l.slug)
		return l.err
	}
	l.state = Ready
	l.err = nil
	l.products = page.Products
	return nil
}

// State returns the current state.
func (l *Listing) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error that moved the listing to Failed.
func (l *Listing) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// SetSort changes the sort order applied by Products.
func (l *Listing) SetSort(order SortOrder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = order
}

// Sort returns the current sort order.
func (l *Listing) Sort() SortOrder {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order
}

// Products returns the loaded products in the current sort order.
func (l *Listing) Products() []product.Product {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Sorted(l.products, l.order)
}
