package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/detail"
)

var errUnknownCategory = errors.New("category not found")

// ListCategories returns the fixed navigation categories.
func (h *Handler) ListCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range category.All {
				e.Obj(func(e *jx.Encoder) {
					e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
					e.Field("slug", func(e *jx.Encoder) { e.Str(c.Slug) })
				})
			}
		})
	})
}

// GetCategory returns the products of one category in the order given by
// the sort query parameter.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := r.PathValue("slug")

	c, ok := category.Lookup(slug)
	if !ok {
		fail(w, r, errors.Wrapf(errUnknownCategory, "%q", slug))
		return
	}
	order, err := category.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		fail(w, r, err)
		return
	}

	listing := category.NewListing(h.products, c.Slug,
		category.WithLimit(h.categoryLimit),
		category.WithLogger(zctx.From(ctx)),
	)
	if err := listing.Load(ctx); err != nil {
		fail(w, r, upstream(err))
		return
	}
	listing.SetSort(order)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
			e.Field("slug", func(e *jx.Encoder) { e.Str(c.Slug) })
			e.Field("heading", func(e *jx.Encoder) { e.Str(category.Heading(c.Slug)) })
			e.Field("sort", func(e *jx.Encoder) { e.Str(string(listing.Sort())) })
			e.Field("products", func(e *jx.Encoder) { encodeCards(e, listing.Products()) })
		})
	})
}

// GetProduct resolves a product page by slug and records the view in the
// session's recently viewed list.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	d, err := h.resolver.Resolve(ctx, r.PathValue("slug"))
	if err != nil {
		fail(w, r, upstream(err))
		return
	}
	if err := sess.Recent.Add(ctx, d.Product); err != nil {
		zctx.From(ctx).Warn("Record recent view failed", zap.Int("product", d.Product.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDetail(e, d) })
}

func encodeDetail(e *jx.Encoder, d *detail.Detail) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product", func(e *jx.Encoder) { encodeCard(e, d.Product) })
		e.Field("images", func(e *jx.Encoder) { encodeStrings(e, d.Images) })
		e.Field("specs", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range d.Specs {
					e.Obj(func(e *jx.Encoder) {
						e.Field("label", func(e *jx.Encoder) { e.Str(s.Label) })
						e.Field("value", func(e *jx.Encoder) { e.Str(s.Value) })
					})
				}
			})
		})
		e.Field("related", func(e *jx.Encoder) { encodeCards(e, d.Related) })
		e.Field("meta", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("title", func(e *jx.Encoder) { e.Str(d.Meta.Title) })
				e.Field("description", func(e *jx.Encoder) { e.Str(d.Meta.Description) })
				e.Field("images", func(e *jx.Encoder) { encodeStrings(e, d.Meta.Images) })
			})
		})
	})
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}
