package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nfauzi/storefront/internal/resilience"
)

// ErrUnavailable wraps upstream catalog failures. Callers surface it to the
// user as a generic connectivity message and leave state unchanged.
var ErrUnavailable = errors.New("catalog: upstream unavailable")

// Client fetches products and categories from the upstream catalog API.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Cache   *Cache
}

// NewClient builds a catalog client for the provided base URL.
func NewClient(baseURL string, httpClient resilience.HTTPClient, cache *Cache) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		Cache:   cache,
	}
}

// ListProducts returns the catalog, optionally restricted to a category.
func (c *Client) ListProducts(ctx context.Context, category string) ([]Product, error) {
	path := "/products"
	cacheKey := "catalog:products"
	if trimmed := strings.TrimSpace(category); trimmed != "" {
		path = "/products/category/" + url.PathEscape(trimmed)
		cacheKey = "catalog:products:" + trimmed
	}

	var products []Product
	if ok, err := c.Cache.GetJSON(ctx, cacheKey, &products); err == nil && ok {
		return products, nil
	}
	if err := c.getJSON(ctx, path, &products); err != nil {
		return nil, err
	}
	_ = c.Cache.SetJSON(ctx, cacheKey, products)
	return products, nil
}

// GetProduct fetches a single product snapshot by id.
func (c *Client) GetProduct(ctx context.Context, id int64) (Product, error) {
	cacheKey := fmt.Sprintf("catalog:product:%d", id)
	var product Product
	if ok, err := c.Cache.GetJSON(ctx, cacheKey, &product); err == nil && ok {
		return product, nil
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/products/%d", id), &product); err != nil {
		return Product{}, err
	}
	_ = c.Cache.SetJSON(ctx, cacheKey, product)
	return product, nil
}

// ListCategories returns the category names known to the catalog.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if ok, err := c.Cache.GetJSON(ctx, "catalog:categories", &categories); err == nil && ok {
		return categories, nil
	}
	if err := c.getJSON(ctx, "/products/categories", &categories); err != nil {
		return nil, err
	}
	_ = c.Cache.SetJSON(ctx, "catalog:categories", categories)
	return categories, nil
}

// FetchMany resolves a batch of product ids concurrently. Completion order is
// unconstrained; the result only becomes available once every outstanding
// fetch has settled. Any failure fails the whole batch and callers must leave
// derived state untouched. Duplicate ids are fetched once.
func (c *Client) FetchMany(ctx context.Context, ids []int64) ([]Product, error) {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		products = make([]Product, 0, len(unique))
		firstErr error
	)
	for _, id := range unique {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			product, err := c.GetProduct(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			products = append(products, product)
		}(id)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return products, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

// DefaultHTTPClient returns the resilient HTTP client used for catalog calls
// unless the caller supplies its own.
func DefaultHTTPClient() resilience.HTTPClient {
	return resilience.HTTPClient{
		Client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("catalog"),
		BaseBackoff: 200 * time.Millisecond,
		MaxAttempts: 3,
		Jitter:      0.2,
	}
}
