package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

type pagedRepo struct {
	product.Repository

	total  int
	failAt int

	mu    sync.Mutex
	skips []int
}

func (r *pagedRepo) List(_ context.Context, limit, skip int) (*product.Page, error) {
	r.mu.Lock()
	r.skips = append(r.skips, skip)
	r.mu.Unlock()

	if r.failAt > 0 && skip == r.failAt {
		return nil, errors.New("boom")
	}
	page := &product.Page{Total: r.total, Skip: skip, Limit: limit}
	for id := skip + 1; id <= min(skip+limit, r.total); id++ {
		page.Products = append(page.Products, product.Product{ID: id, Title: "Item"})
	}
	return page, nil
}

func TestCollect(t *testing.T) {
	repo := &pagedRepo{total: 250}
	got, err := collect(context.Background(), zap.NewNop(), repo, 100, 2)
	require.NoError(t, err)

	require.Len(t, got, 250)
	for i, p := range got {
		assert.Equal(t, i+1, p.ID)
	}
	assert.ElementsMatch(t, []int{0, 100, 200}, repo.skips)
}

func TestCollect_SinglePage(t *testing.T) {
	repo := &pagedRepo{total: 3}
	got, err := collect(context.Background(), zap.NewNop(), repo, 100, 2)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, []int{0}, repo.skips)
}

func TestCollect_Failure(t *testing.T) {
	repo := &pagedRepo{total: 500, failAt: 200}
	_, err := collect(context.Background(), zap.NewNop(), repo, 100, 1)
	assert.ErrorContains(t, err, "list page 2: boom")
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	n, err := write(gz, "https://shop.example", []product.Product{
		{ID: 42, Title: "Wireless Mouse"},
		{ID: 7, Title: "Phone X"},
	})
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	assert.Equal(t, 1+16+2, n)

	r, err := pgzip.NewReader(&buf)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	xml := string(data)
	assert.True(t, strings.HasPrefix(xml, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, xml, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	assert.Contains(t, xml, "<loc>https://shop.example/products/wireless-mouse-42</loc>")
	assert.Contains(t, xml, "<loc>https://shop.example/category/home-decoration</loc>")
	assert.Equal(t, n, strings.Count(xml, "<loc>"))
}

func TestWrite_InvalidSite(t *testing.T) {
	_, err := write(io.Discard, "shop.example", nil)
	assert.Error(t, err)
}
