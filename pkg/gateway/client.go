// Package gateway is the HTTP client for the order service: the cart table,
// order submission, the catalog and the customer's order and document history.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/angelmondragon/storefront-cart/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	responseBodyLimit int64 = 4 << 20
	errorBodyLimit          = 1024

	defaultTimeout = 30 * time.Second
)

var errBaseURLRequired = errors.New("gateway base url is required")

// Client talks to the order service. Every call makes exactly one attempt.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	marker     string
	logg       *logger.Logger
	metrics    *metrics.HTTPMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the instrumented default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithUnknownCustomerMarker overrides the response text that signals an unknown customer.
func WithUnknownCustomerMarker(marker string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(marker); m != "" {
			c.marker = m
		}
	}
}

// NewClient builds a gateway client for cfg.BaseURL.
func NewClient(cfg config.GatewayConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:   baseURL,
		userAgent: cfg.UserAgent,
		marker:    DefaultUnknownCustomerMarker,
		logg:      logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// DefaultUnknownCustomerMarker is the text the order service returns for a customer it does not know.
const DefaultUnknownCustomerMarker = "Customer Code Not Found"

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ImageURL returns the product image endpoint for itemCode.
func (c *Client) ImageURL(itemCode string) string {
	return c.baseURL + "/images?" + url.Values{"item_code": {itemCode}}.Encode()
}

// call performs one request and decodes the envelope's data into out (when non-nil).
// It returns the envelope's pagination block, if any.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, out any) (*types.Pagination, error) {
	ctx = c.logg.WithFields(ctx, map[string]any{"gateway_method": method, "gateway_path": path})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if reqID := logger.RequestID(ctx); reqID != "" {
		req.Header.Set("X-Request-Id", reqID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Observe(method, path, 0, time.Since(start))
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "gateway request failed")
		return nil, pkgerrors.RemoteNetwork(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	c.metrics.Observe(method, path, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, pkgerrors.RemoteNetwork(err)
	}

	ctx = c.logg.WithField(ctx, "status", resp.StatusCode)
	if c.unknownCustomer(resp.StatusCode, raw) {
		c.logg.Warn(ctx, "order service does not recognize the customer")
		return nil, pkgerrors.New(pkgerrors.CodeSessionInvalidated, "customer is no longer recognized, please log in again").
			WithDetails(map[string]any{pkgerrors.DetailStatus: resp.StatusCode, pkgerrors.DetailBody: truncate(raw)})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logg.Warn(c.logg.WithField(ctx, "body", truncate(raw)), "gateway returned non-2xx")
		return nil, pkgerrors.RemoteStatus(resp.StatusCode, truncate(raw))
	}

	var env types.Envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, pkgerrors.RemoteRejected("order service returned a malformed response", resp.StatusCode, truncate(raw))
	}
	if !env.Success {
		c.logg.Warn(c.logg.WithField(ctx, "message", env.ErrorMessage()), "gateway rejected request")
		return nil, pkgerrors.RemoteRejected(env.ErrorMessage(), resp.StatusCode, truncate(raw))
	}
	c.logg.Debug(ctx, "gateway request completed")

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return nil, pkgerrors.RemoteRejected("order service returned unexpected data", resp.StatusCode, truncate(raw))
		}
	}
	return env.Pagination, nil
}

func (c *Client) unknownCustomer(status int, raw []byte) bool {
	if c.marker == "" {
		return false
	}
	if status != http.StatusBadRequest {
		return false
	}
	var env types.ErrorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && strings.EqualFold(strings.TrimSpace(env.Error), c.marker) {
		return true
	}
	return bytes.Contains(raw, []byte(c.marker))
}

func truncate(raw []byte) string {
	if len(raw) > errorBodyLimit {
		return string(raw[:errorBodyLimit])
	}
	return string(raw)
}

// params builds a query, dropping blank values.
func params(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if v := strings.TrimSpace(kv[i+1]); v != "" {
			q.Set(kv[i], v)
		}
	}
	return q
}
