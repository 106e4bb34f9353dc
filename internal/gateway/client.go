// Package gateway is the only path from the client to the ledger service. It
// attaches credentials, encodes payloads and turns every failure into one of
// RequestError, AuthError or NetworkError. It never retries and never touches
// cached state.
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

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"unibank/internal/metrics"
)

const maxBodyBytes = 4 << 20

// TokenSource supplies the current bearer token, or "" when signed out.
type TokenSource interface {
	Token() string
}

// Client talks to the ledger service.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	timeout    time.Duration
	logger     *logrus.Entry
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout bounds every call regardless of the caller's context. It
// applies to the client passed with WithHTTPClient too, in any option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a ledger client rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		tokens:  tokens,
		logger:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if c.timeout > 0 {
		// The caller's client is left untouched.
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	if c.logger == nil {
		c.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	c.logger = c.logger.WithField("component", "gateway")
	return c
}

type call struct {
	// endpoint names the call for logs and metrics without ids in it.
	endpoint  string
	method    string
	path      string
	query     url.Values
	body      any
	form      url.Values
	anonymous bool
}

// do performs one round trip and decodes a success body into out.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	if c.baseURL == "" {
		return &NetworkError{Endpoint: cl.endpoint, Err: errors.New("ledger base url is empty")}
	}

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var (
		payload     io.Reader
		contentType string
	)
	switch {
	case cl.form != nil:
		payload = strings.NewReader(cl.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case cl.body != nil:
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cl.endpoint, err)
		}
		payload = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, payload)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", cl.endpoint, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if !cl.anonymous && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := c.logger.WithFields(logrus.Fields{
		"endpoint":   cl.endpoint,
		"method":     cl.method,
		"request_id": requestID,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveLedgerCall(cl.method, cl.endpoint, "network_error", time.Since(start))
		log.WithError(err).Debug("ledger call failed")
		return &NetworkError{Endpoint: cl.endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.ObserveLedgerCall(cl.method, cl.endpoint, "network_error", time.Since(start))
		return &NetworkError{Endpoint: cl.endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	log = log.WithFields(logrus.Fields{"status": resp.StatusCode, "elapsed": time.Since(start).String()})

	if resp.StatusCode >= 400 {
		metrics.ObserveLedgerCall(cl.method, cl.endpoint, "rejected", time.Since(start))
		reason := extractReason(raw)
		log.WithField("reason", reason).Debug("ledger call rejected")
		if cl.anonymous {
			return &AuthError{StatusCode: resp.StatusCode, reason: reason}
		}
		return NewRequestError(cl.endpoint, resp.StatusCode, reason)
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			metrics.ObserveLedgerCall(cl.method, cl.endpoint, "decode_error", time.Since(start))
			log.WithError(err).Debug("ledger response undecodable")
			return &NetworkError{Endpoint: cl.endpoint, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	metrics.ObserveLedgerCall(cl.method, cl.endpoint, "ok", time.Since(start))
	log.Debug("ledger call completed")
	return nil
}
