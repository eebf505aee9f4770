package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/session"
)

func encodeCart(e *jx.Encoder, items []cart.Item) {
	t := cart.Compute(items)
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range items {
					encodeItem(e, it)
				}
			})
		})
		e.Field("count", func(e *jx.Encoder) { e.Int(t.Count) })
		money(e, "subtotal", t.Subtotal)
		money(e, "total", t.Total)
		money(e, "savings", t.Savings)
		e.Field("display", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("subtotal", func(e *jx.Encoder) { e.Str(pricing.FormatMoney(t.Subtotal)) })
				e.Field("total", func(e *jx.Encoder) { e.Str(pricing.FormatMoney(t.Total)) })
				e.Field("savings", func(e *jx.Encoder) { e.Str(pricing.FormatMoney(t.Savings)) })
			})
		})
	})
}

func encodeItem(e *jx.Encoder, it cart.Item) {
	e.ObjStart()
	it.EncodeFields(e)
	e.Field("slug", func(e *jx.Encoder) { e.Str(pricing.CreateProductSlug(it.Product)) })
	e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
	money(e, "finalPrice", it.UnitPrice())
	money(e, "lineTotal", it.LineTotal())
	money(e, "savings", it.Savings())
	e.Field("displayPrice", func(e *jx.Encoder) { e.Str(pricing.FormatMoney(it.UnitPrice())) })
	e.Field("displayLineTotal", func(e *jx.Encoder) { e.Str(pricing.FormatMoney(it.LineTotal())) })
	e.ObjEnd()
}

func writeCart(w http.ResponseWriter, sess *session.Session) {
	items := sess.Cart.Items()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, items) })
}

// GetCart returns the cart lines and totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, sess)
}

// AddToCart adds one unit of a product. The price is resolved from the
// catalog now and locked for the lifetime of the line.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	id := -1
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "productId" {
			return d.Skip()
		}
		var err error
		id, err = d.Int()
		return err
	})
	if err == nil && id < 0 {
		err = errors.Wrap(errBadRequest, "productId is required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	p, err := h.products.GetByID(ctx, id)
	if err != nil {
		fail(w, r, upstream(errors.Wrapf(err, "get product %d", id)))
		return
	}
	if err := sess.Cart.Add(ctx, *p, pricing.FinalPrice(*p)); err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, sess)
}

// UpdateCartItem sets the quantity of a line. Zero or less removes it.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	var (
		qty int
		set bool
	)
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		set = true
		var err error
		qty, err = d.Int()
		return err
	})
	if err == nil && !set {
		err = errors.Wrap(errBadRequest, "quantity is required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	if err := sess.Cart.UpdateQuantity(r.Context(), id, qty); err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, sess)
}

// RemoveCartItem deletes a line. Removing an absent line succeeds.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := sess.Cart.Remove(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, sess)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := sess.Cart.Clear(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	writeCart(w, sess)
}

// GetRecent returns the recently viewed products, latest first.
func (h *Handler) GetRecent(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	items := sess.Recent.Items()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) { encodeCards(e, items) })
		})
	})
}
