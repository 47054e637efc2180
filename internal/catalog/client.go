// Package catalog is the read-only boundary to the product catalog service,
// used to resolve names and current prices while pricing an order.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrNotFound = errors.New("catalog record not found")

type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type Variant struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
}

type Client struct {
	HTTP    *http.Client
	BaseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		BaseURL: baseURL,
	}
}

func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := c.get(ctx, fmt.Sprintf("%s/products/%s", c.BaseURL, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetVariant(ctx context.Context, id string) (*Variant, error) {
	var v Variant
	if err := c.get(ctx, fmt.Sprintf("%s/variants/%s", c.BaseURL, id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(res.Body).Decode(out)
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("catalog: unexpected status %s", res.Status)
	}
}
