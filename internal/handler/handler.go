// Package handler serves the storefront JSON API on a net/http ServeMux.
package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/detail"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/session"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// SiteName is appended to product page titles.
	SiteName string
	// CategoryLimit bounds the products fetched for a category page.
	// Zero means category.DefaultLimit.
	CategoryLimit int
}

// Handler exposes the cart, recent-viewed, feed, category and product
// detail flows of one session per request. The session id is taken from
// the request context, see httpmiddleware.SessionID.
type Handler struct {
	products      product.Repository
	sessions      *session.Registry
	resolver      *detail.Resolver
	categoryLimit int
}

// New constructs a Handler.
func New(cfg Config, products product.Repository, sessions *session.Registry) *Handler {
	var opts []detail.Option
	if cfg.SiteName != "" {
		opts = append(opts, detail.WithSiteName(cfg.SiteName))
	}
	limit := cfg.CategoryLimit
	if limit <= 0 {
		limit = category.DefaultLimit
	}
	return &Handler{
		products:      products,
		sessions:      sessions,
		resolver:      detail.NewResolver(products, opts...),
		categoryLimit: limit,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/feed", h.GetFeed)
	mux.HandleFunc("POST /api/feed/more", h.LoadMore)
	mux.HandleFunc("PUT /api/feed/query", h.SetQuery)

	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("GET /api/categories/{slug}", h.GetCategory)
	mux.HandleFunc("GET /api/products/{slug}", h.GetProduct)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AddToCart)
	mux.HandleFunc("PUT /api/cart/items/{id}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.RemoveCartItem)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)

	mux.HandleFunc("GET /api/recent", h.GetRecent)
}
