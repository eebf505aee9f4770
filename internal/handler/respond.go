package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/detail"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const maxBodySize = 64 << 10

var (
	errMissingSession = errors.New("missing session")
	errBadRequest     = errors.New("bad request")
)

func writeJSON(w http.ResponseWriter, code int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// fail maps err to a status code and writes the error body. Upstream
// catalog failures become 502; anything unclassified is a 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())

	var statusErr *catalog.StatusError
	switch {
	case errors.Is(err, errMissingSession), errors.Is(err, errBadRequest),
		errors.Is(err, category.ErrUnknownSort):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, detail.ErrNotFound), errors.Is(err, product.ErrNotFound),
		errors.Is(err, errUnknownCategory):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away.
		lg.Debug("Request cancelled", zap.Error(err))
	case errors.As(err, &statusErr), errors.As(err, new(*upstreamError)):
		lg.Warn("Catalog request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "catalog unavailable")
	default:
		lg.Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// upstreamError marks a failure of a catalog call, including transport
// errors that carry no status code.
type upstreamError struct{ err error }

func (e *upstreamError) Error() string { return e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }

func upstream(err error) error {
	if err == nil {
		return nil
	}
	return &upstreamError{err: err}
}

func (h *Handler) session(r *http.Request) (*session.Session, error) {
	id := httpmiddleware.SessionIDFromContext(r.Context())
	if !session.ValidID(id) {
		return nil, errMissingSession
	}
	return h.sessions.Get(r.Context(), id)
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		return 0, errors.Wrapf(errBadRequest, "invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// decodeBody reads a JSON object from the request body, passing every key
// to field.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(errBadRequest, "read body")
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return errors.Wrapf(errBadRequest, "decode body: %v", err)
	}
	return nil
}

func money(e *jx.Encoder, name string, amount decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { product.EncodeDecimal(e, amount) })
}

// encodeCard writes a product as a listing card: the catalog record plus
// slug and computed pricing.
func encodeCard(e *jx.Encoder, p product.Product) {
	final := pricing.FinalPrice(p)
	e.ObjStart()
	p.EncodeFields(e)
	e.Field("slug", func(e *jx.Encoder) { e.Str(pricing.CreateProductSlug(p)) })
	money(e, "finalPrice", final)
	e.Field("hasDiscount", func(e *jx.Encoder) { e.Bool(pricing.HasDiscount(p)) })
	e.Field("displayPrice", func(e *jx.Encoder) { e.Str(pricing.FormatMoney(final)) })
	e.ObjEnd()
}

func encodeCards(e *jx.Encoder, products []product.Product) {
	e.ArrStart()
	for _, p := range products {
		encodeCard(e, p)
	}
	e.ArrEnd()
}
