// Command sitemap writes a gzip-compressed sitemap of every catalog product
// page and category page.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/catalog"
)

func main() {
	var (
		catalogURL  string
		siteURL     string
		out         string
		pageSize    int
		concurrency int
	)

	flag.StringVar(&catalogURL, "catalog-url", "https://dummyjson.com", "catalog API base URL")
	flag.StringVar(&siteURL, "site-url", "", "public storefront URL used in <loc> entries (required)")
	flag.StringVar(&out, "out", "sitemap.xml.gz", "output file")
	flag.IntVar(&pageSize, "page-size", 100, "products requested per catalog page")
	flag.IntVar(&concurrency, "concurrency", 4, "parallel catalog requests")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if siteURL == "" {
		lg.Fatal("Site URL is required: set --site-url")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	n, err := run(ctx, lg, catalogURL, siteURL, out, pageSize, concurrency)
	if err != nil {
		lg.Fatal("Sitemap failed", zap.Error(err))
	}
	lg.Info("Sitemap written",
		zap.String("out", out),
		zap.Int("urls", n),
		zap.Duration("took", time.Since(start)),
	)
}

func run(ctx context.Context, lg *zap.Logger, catalogURL, siteURL, out string, pageSize, concurrency int) (int, error) {
	client, err := catalog.New(catalogURL)
	if err != nil {
		return 0, errors.Wrap(err, "create catalog client")
	}

	products, err := collect(ctx, lg, client, pageSize, concurrency)
	if err != nil {
		return 0, errors.Wrap(err, "collect products")
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, errors.Wrap(err, "create output")
	}
	defer func() { _ = f.Close() }()

	gz := pgzip.NewWriter(f)
	n, err := write(gz, siteURL, products)
	if err != nil {
		return 0, errors.Wrap(err, "write sitemap")
	}
	if err := gz.Close(); err != nil {
		return 0, errors.Wrap(err, "flush gzip")
	}
	if err := f.Close(); err != nil {
		return 0, errors.Wrap(err, "close output")
	}
	return n, nil
}
