package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/deeplooplabs/pagedcache"
)

// HTTP fetches pages from a JSON search endpoint:
//
//	GET {endpoint}?q=term&category=a&category=b&at=lat,lon&radius=m&offset=N&limit=M
//
// answered with {"items": [...], "total": N}.
type HTTP[T any] struct {
	config   *Config
	client   *http.Client
	endpoint *url.URL
}

// NewHTTP creates a new HTTP backend with the given configuration
func NewHTTP[T any](config *Config) (*HTTP[T], error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	endpoint, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	client, err := config.GetHTTPClient()
	if err != nil {
		return nil, err
	}
	return &HTTP[T]{
		config:   config,
		client:   client,
		endpoint: endpoint,
	}, nil
}

// Name returns the backend name
func (b *HTTP[T]) Name() string {
	if b.config.Name != "" {
		return b.config.Name
	}
	return "http"
}

// Config returns the backend configuration
func (b *HTTP[T]) Config() *Config {
	return b.config
}

// Fetch implements Backend.Fetch
func (b *HTTP[T]) Fetch(ctx context.Context, q *pagedcache.Query, offset, limit int) (*Page[T], error) {
	target := b.pageURL(q, offset, limit)

	resp, err := retryWithBackoff(ctx, b.config.RetryConfig, func() (*http.Response, error) {
		return b.send(ctx, target)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", b.Name(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetch %s: %w", b.Name(), ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetch %s: %w", b.Name(), ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var page Page[T]
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &page, nil
}

func (b *HTTP[T]) pageURL(q *pagedcache.Query, offset, limit int) string {
	u := *b.endpoint
	values := u.Query()
	for k, v := range q.Params() {
		values.Set(k, v)
	}
	if q.Term != "" {
		values.Set("q", q.Term)
	}
	for _, c := range q.Categories {
		values.Add("category", c)
	}
	if q.Area != nil {
		values.Set("at", strconv.FormatFloat(q.Area.Latitude, 'f', -1, 64)+","+strconv.FormatFloat(q.Area.Longitude, 'f', -1, 64))
		if q.Area.Radius > 0 {
			values.Set("radius", strconv.FormatFloat(q.Area.Radius, 'f', -1, 64))
		}
	}
	if q.RecommendationID != "" {
		values.Set("recommendation", q.RecommendationID)
	}
	values.Set("offset", strconv.Itoa(offset))
	values.Set("limit", strconv.Itoa(limit))
	u.RawQuery = values.Encode()
	return u.String()
}

func (b *HTTP[T]) send(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	switch {
	case b.config.APIKey != "":
		req.Header.Set("Authorization", "Bearer "+b.config.APIKey)
	case b.config.Username != "":
		req.SetBasicAuth(b.config.Username, b.config.Password)
	}
	for k, v := range b.config.Headers {
		req.Header.Set(k, v)
	}

	return b.client.Do(req)
}

var _ Backend[any] = (*HTTP[any])(nil)
