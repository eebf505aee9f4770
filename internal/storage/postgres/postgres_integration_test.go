//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16",
			Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "storefront"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, container.Terminate(ctx))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/storefront?sslmode=disable", host, port.Port())
}

func TestStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := NewPool(ctx, startPostgres(ctx, t))
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, RunMigrations(ctx, pool))
	// Idempotent.
	require.NoError(t, RunMigrations(ctx, pool))

	s := New(pool)
	require.NoError(t, s.Ping(ctx))

	t.Run("LoadSaveDelete", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, s.Save(ctx, "k", []byte(`{"version":1,"items":[]}`)))
		require.NoError(t, s.Save(ctx, "k", []byte(`{"version":1,"items":[1]}`)))
		got, err := s.Load(ctx, "k")
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":1,"items":[1]}`, string(got))

		require.NoError(t, s.Delete(ctx, "k"))
		_, err = s.Load(ctx, "k")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("CartSummaries", func(t *testing.T) {
		st, err := cart.Open(ctx, storage.Scoped(s, "sess-1"))
		require.NoError(t, err)

		p := product.Product{ID: 1, Title: "Mouse", Price: decimal.RequireFromString("100.10")}
		require.NoError(t, st.Add(ctx, p, decimal.RequireFromString("90.09")))
		require.NoError(t, st.Add(ctx, p, decimal.Zero))
		require.NoError(t, st.Add(ctx, product.Product{ID: 2, Price: decimal.RequireFromString("5")}, decimal.Zero))

		empty, err := cart.Open(ctx, storage.Scoped(s, "sess-2"))
		require.NoError(t, err)
		require.NoError(t, empty.Clear(ctx))

		summaries, err := s.CartSummaries(ctx, cart.StorageKey)
		require.NoError(t, err)
		require.Len(t, summaries, 2)

		byID := map[string]CartSummary{}
		for _, c := range summaries {
			byID[c.Session] = c
		}

		got := byID["sess-1"]
		assert.Equal(t, 2, got.Lines)
		assert.Equal(t, 3, got.Units)
		assert.True(t, decimal.RequireFromString("205.20").Equal(got.Subtotal), got.Subtotal.String())
		assert.True(t, decimal.RequireFromString("185.18").Equal(got.Total), got.Total.String())
		assert.True(t, st.Totals().Total.Equal(got.Total))

		assert.Equal(t, 0, byID["sess-2"].Lines)
		assert.True(t, byID["sess-2"].Total.IsZero())
	})

	t.Run("PurgeBefore", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "old", []byte(`{}`)))
		n, err := s.PurgeBefore(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, err = s.Load(ctx, "old")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
