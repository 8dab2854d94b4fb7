package inventory_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"ScanInventory/internal/inventory"
)

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := newInventoryTS(t, inventory.NewMemBackend(), nil, nil)
	c := inventory.NewClient(ts.URL + "/")

	coll, err := c.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, coll.Len())

	_, ok, err := c.Lookup(ctx, "750 100")
	require.NoError(t, err)
	require.False(t, ok)

	coll, err = c.Mutate(ctx, inventory.MutateRequest{Code: "750 100", Name: "Agua", Action: "agregar", Amount: intp(3)})
	require.NoError(t, err)
	require.Equal(t, 1, coll.Len())

	p, ok, err := c.Lookup(ctx, "750 100")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, inventory.ProductRecord{Code: "750 100", Name: "Agua", Quantity: 3, LastUpdated: now}, p)

	coll, err = c.Delete(ctx, "750 100")
	require.NoError(t, err)
	require.Equal(t, 0, coll.Len())
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("input error", func(t *testing.T) {
		ts := newInventoryTS(t, inventory.NewMemBackend(), nil, nil)
		c := inventory.NewClient(ts.URL)

		_, err := c.Mutate(ctx, inventory.MutateRequest{Action: "add"})
		require.ErrorIs(t, err, inventory.ErrInvalidInput)
		require.Contains(t, err.Error(), "code is required")
	})

	t.Run("server error", func(t *testing.T) {
		ts := newInventoryTS(t, &brokenBackend{}, nil, nil)
		c := inventory.NewClient(ts.URL)

		_, err := c.Mutate(ctx, inventory.MutateRequest{Code: "A1", Action: "add"})
		require.ErrorIs(t, err, inventory.ErrServiceBadStatus)
	})

	t.Run("unavailable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		_, err := inventory.NewClient(ts.URL).Fetch(ctx)
		require.ErrorIs(t, err, inventory.ErrServiceUnavailable)
	})

	t.Run("connection refused", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		_, err := inventory.NewClient(url).Fetch(ctx)
		require.True(t, errors.Is(err, inventory.ErrServiceUnavailable))
	})
}
