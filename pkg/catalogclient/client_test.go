package catalogclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/order_service/pkg/rpcclient"
)

func TestValidateProducts_ReturnsFoundSubset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, validatePath, r.URL.Path)

		var req validateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int64{7, 8}, req.IDs)

		_, _ = w.Write([]byte(`[{"id":7,"name":"Widget","price":9.99}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	products, err := c.ValidateProducts(context.Background(), []int64{7, 8})
	require.NoError(t, err)
	require.Len(t, products, 1)

	assert.Equal(t, int64(7), products[0].ID)
	assert.Equal(t, "Widget", products[0].Name)
	assert.True(t, decimal.RequireFromString("9.99").Equal(products[0].Price))
}

func TestValidateProducts_StringPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"A","price":"0.10"}]`))
	}))
	defer srv.Close()

	products, err := NewClient(srv.URL, time.Second).ValidateProducts(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, "0.1", products[0].Price.String())
}

func TestValidateProducts_EmptyIDsSkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	products, err := NewClient(srv.URL, time.Second).ValidateProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.False(t, called)
}

func TestValidateProducts_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ValidateProducts(context.Background(), []int64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, rpcclient.ErrRemote)
}

func TestIndex(t *testing.T) {
	idx := Index([]Product{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}})
	assert.Len(t, idx, 2)
	assert.Equal(t, "b", idx[2].Name)
}
