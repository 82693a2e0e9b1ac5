// Package kobo fetches form submissions from the KoboToolbox data API.
//
// The API pages results as {"results": [...], "next": "<url>|null"}. The
// client follows next until it is null. Fetches are restartable from the
// first page but never resume mid-way, and any failed page fails the whole
// fetch.
package kobo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/kobosync/internal/metrics"
	"github.com/JonMunkholm/kobosync/internal/record"
)

const (
	DefaultPageSize     = 1000
	DefaultTimeout      = 30 * time.Second
	DefaultAuthScheme   = "Token"
	DefaultMaxRetries   = 3
	DefaultRetryInitial = 2 * time.Second
	DefaultRetryMax     = 30 * time.Second

	// maxErrorBody caps how much of a failed response is kept for errors.
	maxErrorBody = 512
)

// Client reads submissions for one form.
type Client struct {
	dataURL    string
	token      string
	authScheme string
	pageSize   int
	http       *http.Client

	maxRetries   int
	retryInitial time.Duration
	retryMax     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithPageSize sets the limit requested per page.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithAuthScheme sets the Authorization scheme, "Token" for Kobo or
// "Bearer" for proxies that expect it.
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		if scheme != "" {
			c.authScheme = scheme
		}
	}
}

// WithRetry bounds FetchAllWithRetry.
func WithRetry(maxRetries int, initial, max time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if initial > 0 {
			c.retryInitial = initial
		}
		if max > 0 {
			c.retryMax = max
		}
	}
}

// New returns a Client for dataURL authenticated with token.
func New(dataURL, token string, opts ...Option) (*Client, error) {
	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return nil, errors.New("kobo data url is empty")
	}
	if _, err := url.Parse(dataURL); err != nil {
		return nil, fmt.Errorf("parse kobo data url: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("kobo token is empty")
	}

	c := &Client{
		dataURL:      dataURL,
		token:        token,
		authScheme:   DefaultAuthScheme,
		pageSize:     DefaultPageSize,
		http:         &http.Client{Timeout: DefaultTimeout},
		maxRetries:   DefaultMaxRetries,
		retryInitial: DefaultRetryInitial,
		retryMax:     DefaultRetryMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type page struct {
	Results []record.Record `json:"results"`
	Next    *string         `json:"next"`
}

// Records returns a lazy sequence over every submission, requesting pages
// as the consumer advances. On failure it yields a single error and stops.
func (c *Client) Records(ctx context.Context) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		next := c.firstPage()
		seen := make(map[string]bool)

		for next != "" {
			if seen[next] {
				yield(nil, fmt.Errorf("kobo: pagination cycle at %s", next))
				return
			}
			seen[next] = true

			p, err := c.fetchPage(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			metrics.FetchPages.Inc()

			for _, r := range p.Results {
				if !yield(r, nil) {
					return
				}
			}

			next = ""
			if p.Next != nil {
				next = strings.TrimSpace(*p.Next)
			}
		}
	}
}

// FetchAll drains Records. Nothing is returned unless every page succeeded.
func (c *Client) FetchAll(ctx context.Context) ([]record.Record, error) {
	var out []record.Record
	for r, err := range c.Records(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	metrics.FetchRecords.Add(float64(len(out)))
	return out, nil
}

func (c *Client) firstPage() string {
	u, err := url.Parse(c.dataURL)
	if err != nil {
		return c.dataURL
	}
	q := u.Query()
	if q.Get("format") == "" {
		q.Set("format", "json")
	}
	if q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(c.pageSize))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return page{}, fmt.Errorf("build kobo request: %w", err)
	}
	req.Header.Set("Authorization", c.authScheme+" "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return page{}, &TransportError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return page{}, &TransportError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var p page
	if err := dec.Decode(&p); err != nil {
		return page{}, &TransportError{URL: pageURL, Err: fmt.Errorf("decode page: %w", err)}
	}
	return p, nil
}
