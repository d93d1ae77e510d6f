package catalogclient

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/order_service/pkg/rpcclient"
)

const validatePath = "/products/validate"

type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type validateRequest struct {
	IDs []int64 `json:"ids"`
}

type Client struct {
	rpc *rpcclient.Client
}

func NewClient(productsServiceURL string, timeout time.Duration, opts ...rpcclient.Option) *Client {
	return &Client{rpc: rpcclient.New("catalog", productsServiceURL, timeout, opts...)}
}

// ValidateProducts returns the subset of ids the catalog knows, with current name and price.
func (c *Client) ValidateProducts(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}

	var products []Product
	if err := c.rpc.PostJSON(ctx, validatePath, validateRequest{IDs: ids}, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// Index keys products by id.
func Index(products []Product) map[int64]Product {
	out := make(map[int64]Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out
}
