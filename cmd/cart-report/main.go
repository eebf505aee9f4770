// Command cart-report summarizes the carts persisted by the postgres
// storage backend and optionally purges stale client state.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		purgeAfter  time.Duration
		top         int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.DurationVar(&purgeAfter, "purge-older-than", 0, "delete client state not updated for this long (0 disables)")
	flag.IntVar(&top, "top", 20, "number of carts to list")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if top < 0 {
		lg.Fatal("Invalid --top: must not be negative", zap.Int("top", top))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, purgeAfter, top); err != nil {
		lg.Fatal("Cart report failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, purgeAfter time.Duration, top int) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	store := postgres.New(pool)

	carts, err := store.CartSummaries(ctx, cart.StorageKey)
	if err != nil {
		return errors.Wrap(err, "summarize carts")
	}

	r := summarize(carts)
	lg.Info("Carts",
		zap.Int("carts", r.Carts),
		zap.Int("empty", r.Empty),
		zap.Int("units", r.Units),
		zap.String("subtotal", pricing.FormatMoney(r.Subtotal)),
		zap.String("total", pricing.FormatMoney(r.Total)),
		zap.String("savings", pricing.FormatMoney(r.Subtotal.Sub(r.Total))),
	)
	for _, c := range topCarts(carts, top) {
		lg.Info("Cart",
			zap.String("session", c.Session),
			zap.Int("lines", c.Lines),
			zap.Int("units", c.Units),
			zap.String("total", pricing.FormatMoney(c.Total)),
			zap.String("savings", pricing.FormatMoney(c.Savings())),
			zap.Time("updated_at", c.UpdatedAt),
		)
	}

	if purgeAfter <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-purgeAfter)
	n, err := store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return errors.Wrap(err, "purge")
	}
	lg.Info("Purged stale client state", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	return nil
}

// topCarts returns at most n leading carts.
func topCarts(carts []postgres.CartSummary, n int) []postgres.CartSummary {
	return carts[:max(0, min(n, len(carts)))]
}

type report struct {
	Carts    int
	Empty    int
	Units    int
	Subtotal decimal.Decimal
	Total    decimal.Decimal
}

func summarize(carts []postgres.CartSummary) report {
	r := report{Subtotal: decimal.Zero, Total: decimal.Zero}
	for _, c := range carts {
		r.Carts++
		if c.Lines == 0 {
			r.Empty++
		}
		r.Units += c.Units
		r.Subtotal = r.Subtotal.Add(c.Subtotal)
		r.Total = r.Total.Add(c.Total)
	}
	return r
}
