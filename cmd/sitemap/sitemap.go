package main

import (
	"context"
	"encoding/xml"
	"io"
	"net/url"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// collect fetches the whole catalog. The first page reports the total,
// the remaining pages are fetched concurrently and reassembled in order.
func collect(ctx context.Context, lg *zap.Logger, repo product.Repository, pageSize, concurrency int) ([]product.Product, error) {
	first, err := repo.List(ctx, pageSize, 0)
	if err != nil {
		return nil, errors.Wrap(err, "list first page")
	}
	if len(first.Products) == 0 || first.Total <= len(first.Products) {
		return first.Products, nil
	}

	pages := make([][]product.Product, (first.Total+pageSize-1)/pageSize)
	pages[0] = first.Products
	lg.Info("Fetching catalog", zap.Int("total", first.Total), zap.Int("pages", len(pages)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 1; i < len(pages); i++ {
		g.Go(func() error {
			page, err := repo.List(ctx, pageSize, i*pageSize)
			if err != nil {
				return errors.Wrapf(err, "list page %d", i)
			}
			pages[i] = page.Products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]product.Product, 0, first.Total)
	for _, p := range pages {
		out = append(out, p...)
	}
	return out, nil
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	NS      string   `xml:"xmlns,attr"`
	URLs    []loc    `xml:"url"`
}

type loc struct {
	Loc string `xml:"loc"`
}

// write emits the sitemap XML and returns the number of URLs written.
func write(w io.Writer, siteURL string, products []product.Product) (int, error) {
	base, err := url.Parse(siteURL)
	if err != nil || !base.IsAbs() {
		return 0, errors.Errorf("invalid site URL %q", siteURL)
	}

	set := urlset{NS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, loc{Loc: base.String()})
	for _, c := range category.All {
		set.URLs = append(set.URLs, loc{Loc: base.JoinPath("category", c.Slug).String()})
	}
	for _, p := range products {
		set.URLs = append(set.URLs, loc{Loc: base.JoinPath("products", pricing.CreateProductSlug(p)).String()})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return 0, err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return 0, errors.Wrap(err, "encode")
	}
	return len(set.URLs), nil
}
