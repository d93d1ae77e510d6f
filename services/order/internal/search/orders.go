package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/order_service/services/order/internal/domain"
	"github.com/Skotchmaster/order_service/services/order/internal/models"
)

type OrderDocument struct {
	ID          string             `json:"id"`
	Status      domain.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	TotalItems  int                `json:"totalItems"`
	Paid        bool               `json:"paid"`
	ProductIDs  []int64            `json:"productIds"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func NewOrderDocument(o *models.Order) OrderDocument {
	return OrderDocument{
		ID:          o.ID.String(),
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		TotalItems:  o.TotalItems,
		Paid:        o.Paid,
		ProductIDs:  o.ProductIDs(),
		CreatedAt:   o.CreatedAt,
	}
}

type Query struct {
	Status    *domain.OrderStatus
	ProductID int64
	From      int
	Size      int
}

type ESIndexer struct {
	ES    *elasticsearch.Client
	Index string
}

func NewClient(url, user, password string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
}

// IndexOrder upserts the order document under its id.
func (ix *ESIndexer) IndexOrder(ctx context.Context, o *models.Order) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(NewOrderDocument(o)); err != nil {
		return fmt.Errorf("es: encode order %s: %w", o.ID, err)
	}

	res, err := ix.ES.Index(
		ix.Index,
		&buf,
		ix.ES.Index.WithContext(ctx),
		ix.ES.Index.WithDocumentID(o.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("es: index order %s: %w", o.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("es: index order %s: %s: %s", o.ID, res.Status(), body)
	}
	return nil
}

// SearchOrders filters the projection by status and product, newest first.
func (ix *ESIndexer) SearchOrders(ctx context.Context, q Query) (int64, []OrderDocument, error) {
	filters := []map[string]any{}
	if q.Status != nil {
		filters = append(filters, map[string]any{"term": map[string]any{"status": *q.Status}})
	}
	if q.ProductID > 0 {
		filters = append(filters, map[string]any{"term": map[string]any{"productIds": q.ProductID}})
	}

	body := map[string]any{
		"query": map[string]any{"bool": map[string]any{"filter": filters}},
		"sort":  []map[string]any{{"createdAt": map[string]any{"order": "desc"}}},
		"from":  q.From,
		"size":  q.Size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("es: encode query: %w", err)
	}

	res, err := ix.ES.Search(
		ix.ES.Search.WithContext(ctx),
		ix.ES.Search.WithIndex(ix.Index),
		ix.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("es: search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("es: search: %s: %s", res.Status(), raw)
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source OrderDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("es: decode search response: %w", err)
	}

	docs := make([]OrderDocument, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}
