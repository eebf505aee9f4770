package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/feed"
)

func encodeFeed(e *jx.Encoder, s feed.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) { e.Str(s.State.String()) })
		e.Field("query", func(e *jx.Encoder) { e.Str(s.Query) })
		e.Field("offset", func(e *jx.Encoder) { e.Int(s.Offset) })
		e.Field("hasMore", func(e *jx.Encoder) { e.Bool(s.HasMore) })
		if s.LastError != nil {
			e.Field("error", func(e *jx.Encoder) { e.Str("failed to load products") })
		}
		e.Field("products", func(e *jx.Encoder) { encodeCards(e, s.Products) })
	})
}

// GetFeed returns the session feed, loading the first page on first use.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	snap := sess.Feed.Snapshot()
	fresh := snap.State == feed.Idle && snap.Offset == 0 && snap.HasMore &&
		snap.Query == "" && snap.LastError == nil
	if fresh {
		if err := sess.Feed.LoadMore(r.Context()); err != nil {
			fail(w, r, upstream(err))
			return
		}
		snap = sess.Feed.Snapshot()
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeFeed(e, snap) })
}

// LoadMore is the end-of-list trigger. It is ignored while a search is
// active or a page is already loading.
func (h *Handler) LoadMore(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := sess.Feed.OnScrollEnd(r.Context()); err != nil {
		fail(w, r, upstream(err))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeFeed(e, sess.Feed.Snapshot()) })
}

// SetQuery records the search input. The query is applied after the
// debounce period, so the response still shows the previous state.
func (h *Handler) SetQuery(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	var (
		q   string
		set bool
	)
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "q" {
			return d.Skip()
		}
		set = true
		var err error
		q, err = d.Str()
		return err
	})
	if err == nil && !set {
		err = errors.Wrap(errBadRequest, "q is required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	sess.Feed.SetQuery(q)
	writeJSON(w, http.StatusAccepted, func(e *jx.Encoder) { encodeFeed(e, sess.Feed.Snapshot()) })
}
