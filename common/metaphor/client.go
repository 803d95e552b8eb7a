package metaphor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eventscout/common/models"
)

// Metaphor API docs: https://docs.metaphor.systems/
// Auth header: "x-api-key: <KEY>"
// Endpoints used: POST /search, GET /contents?ids=<id>&ids=<id>

const DefaultBaseURL = "https://api.metaphor.systems"

// Client talks to the Metaphor search and contents endpoints.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
	observe   func(op string, err error)
}

// Content is one document returned by the contents endpoint.
type Content struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
	Author  string `json:"author,omitempty"`
}

type searchResponse struct {
	Results          models.SearchResults `json:"results"`
	AutopromptString string               `json:"autopromptString,omitempty"`
}

type contentsResponse struct {
	Contents []Content `json:"contents"`
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	Op         string
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metaphor %s: http %d: %s", e.Op, e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithObserver registers a callback invoked after every call with the operation name
// ("search" or "contents") and its error, if any.
func WithObserver(fn func(op string, err error)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client: &http.Client{
			Timeout:   timeout,
			Transport: tr,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a search query and returns the raw results.
func (c *Client) Search(ctx context.Context, q models.SearchQuery) (models.SearchResults, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("metaphor search: encode request: %w", err)
	}
	var out searchResponse
	err = c.do(ctx, "search", http.MethodPost, "/search", nil, body, &out)
	c.report("search", err)
	if err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = models.SearchResults{}
	}
	return out.Results, nil
}

// Contents returns the documents for the given ids.
func (c *Client) Contents(ctx context.Context, ids []string) ([]Content, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	var out contentsResponse
	err := c.do(ctx, "contents", http.MethodGet, "/contents", q, nil, &out)
	c.report("contents", err)
	if err != nil {
		return nil, err
	}
	return out.Contents, nil
}

func (c *Client) report(op string, err error) {
	if c.observe != nil {
		c.observe(op, err)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte, dest any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("metaphor %s: %w", op, err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("metaphor %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("metaphor %s: decode response: %w", op, err)
	}
	return nil
}
