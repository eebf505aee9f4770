// Package catalog is the HTTP client for the external product catalog API.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/storefront/internal/domain/product"
)

const maxResponseSize = 8 << 20

var _ product.Repository = (*Client)(nil)

// StatusError is returned for non-2xx catalog responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog %s %s: status %d", e.Method, e.Path, e.Code)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTracerProvider sets the provider for client spans and the default
// transport instrumentation.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tp = tp }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client talks to a dummyjson-compatible catalog.
type Client struct {
	base    *url.URL
	http    *http.Client
	tp      trace.TracerProvider
	tracer  trace.Tracer
	timeout time.Duration
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse catalog url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("catalog url %q must be absolute", baseURL)
	}

	c := &Client{
		base:    u,
		tp:      otel.GetTracerProvider(),
		timeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(c.tp),
			),
		}
	}
	c.tracer = c.tp.Tracer("storefront/catalog")
	return c, nil
}

// List returns one page of the full catalog.
func (c *Client) List(ctx context.Context, limit, skip int) (*product.Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(skip))
	return c.page(ctx, "catalog.List", "/products", q)
}

// ListByCategory returns up to limit products of category. A non-positive
// limit leaves the catalog default.
func (c *Client) ListByCategory(ctx context.Context, category string, limit int) (*product.Page, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.page(ctx, "catalog.ListByCategory", "/products/category/"+url.PathEscape(category), q)
}

// Search returns products matching query.
func (c *Client) Search(ctx context.Context, query string) (*product.Page, error) {
	q := url.Values{}
	q.Set("q", query)
	return c.page(ctx, "catalog.Search", "/products/search", q)
}

// GetByID returns a single product. A 404 maps to product.ErrNotFound.
func (c *Client) GetByID(ctx context.Context, id int) (*product.Product, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.GetByID",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("product.id", id)),
	)
	defer span.End()

	var p product.Product
	err := c.do(ctx, http.MethodGet, "/products/"+strconv.Itoa(id), nil, nil, p.Decode)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, errors.Wrapf(product.ErrNotFound, "product %d", id)
		}
		recordError(span, err)
		return nil, err
	}
	return &p, nil
}

func (c *Client) page(ctx context.Context, name, path string, q url.Values) (*product.Page, error) {
	ctx, span := c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var page *product.Page
	err := c.do(ctx, http.MethodGet, path, q, nil, func(d *jx.Decoder) error {
		var err error
		page, err = product.DecodePage(d)
		return err
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("catalog.page.size", len(page.Products)),
		attribute.Int("catalog.page.total", page.Total),
	)
	return page, nil
}

// do performs one request. body, when non-nil, is sent as JSON. decode is
// called with the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, decode func(*jx.Decoder) error) error {
	u := c.base.JoinPath(path)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.Wrapf(err, "read %s %s", method, path)
	}
	if err := decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

// Ping checks that the catalog answers. Used as a readiness check.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", "1")
	q.Set("select", "id")
	return c.do(ctx, http.MethodGet, "/products", q, nil, func(d *jx.Decoder) error {
		return d.Skip()
	})
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
