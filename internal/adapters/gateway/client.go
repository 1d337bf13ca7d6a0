// Package gateway talks to the restaurant chain's GraphQL gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
	"github.com/samirrijal/menuwatch/internal/pkg/jsontree"
	"github.com/samirrijal/menuwatch/internal/pkg/metrics"
	"github.com/samirrijal/menuwatch/internal/pkg/telemetry"
)

// MaxLoggedBody caps how much of a rejected response is kept for logs.
const MaxLoggedBody = 700

// ResponseError is a well-delivered answer the gateway refused: a non-200
// status, an unparseable body or a GraphQL error array. It is never retried.
type ResponseError struct {
	Operation     string
	StatusCode    int
	Body          string
	GraphQLErrors string
}

func (e *ResponseError) Error() string {
	if e.GraphQLErrors != "" {
		return fmt.Sprintf("gateway %s: graphql errors: %s", e.Operation, e.GraphQLErrors)
	}
	return fmt.Sprintf("gateway %s: HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Is lets callers test for domain.ErrGatewayRejected.
func (e *ResponseError) Is(target error) bool {
	return target == domain.ErrGatewayRejected
}

// Client posts GraphQL operations with bounded, jittered retries on
// transport failures.
type Client struct {
	url       string
	http      *http.Client
	headers   [][2]string
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// New builds a Client from cfg.
func New(cfg config.GatewayConfig) (*Client, error) {
	extra, err := cfg.Headers()
	if err != nil {
		return nil, err
	}

	headers := [][2]string{
		{"accept", "application/json"},
		{"content-type", "application/json"},
	}
	if cfg.UserAgent != "" {
		headers = append(headers, [2]string{"user-agent", cfg.UserAgent})
	}
	if cfg.Origin != "" {
		headers = append(headers, [2]string{"origin", cfg.Origin})
	}
	if cfg.Referer != "" {
		headers = append(headers, [2]string{"referer", cfg.Referer})
	}
	for k, v := range extra {
		headers = append(headers, [2]string{k, v})
	}
	if cfg.Auth != "" {
		headers = append(headers, [2]string{"authorization", cfg.Auth})
	}
	if cfg.Cookie != "" {
		headers = append(headers, [2]string{"cookie", cfg.Cookie})
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		url:       cfg.URL,
		http:      &http.Client{Timeout: timeout},
		headers:   headers,
		attempts:  max(cfg.RetryAttempts, 1),
		baseDelay: time.Duration(max(cfg.RetryBaseDelayMs, 1)) * time.Millisecond,
		maxDelay:  time.Duration(max(cfg.RetryMaxDelayMs, cfg.RetryBaseDelayMs, 1)) * time.Millisecond,
	}, nil
}

type request struct {
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

// Post sends one operation and returns the full response document.
// Transport failures are retried; a *ResponseError is returned as soon as
// the gateway answers with something unusable. When the answer carries an
// "errors" member the parsed document is returned alongside the
// *ResponseError so callers can decide whether partial data is usable.
func (c *Client) Post(ctx context.Context, operation, query string, variables map[string]any) (*jsontree.Node, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "gateway.post")
	defer span.End()
	span.SetAttributes(telemetry.AttrOperation.String(operation))

	if variables == nil {
		variables = map[string]any{}
	}
	payload, err := json.Marshal(request{OperationName: operation, Variables: variables, Query: query})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", operation, err)
	}

	var partial *jsontree.Node
	doc, err := backoff.RetryNotifyWithData(
		func() (*jsontree.Node, error) {
			d, err := c.do(ctx, operation, payload)
			if err != nil {
				partial = d
			}
			return d, err
		},
		backoff.WithContext(backoff.WithMaxRetries(c.policy(), uint64(c.attempts-1)), ctx),
		func(err error, wait time.Duration) {
			metrics.GatewayRetries.WithLabelValues(operation).Inc()
			slog.Debug("gateway transport error, retrying",
				"operation", operation, "wait", wait.String(), "error", err)
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway request failed")
		var rerr *ResponseError
		if errors.As(err, &rerr) {
			span.SetAttributes(telemetry.AttrStatusCode.Int(rerr.StatusCode))
			if rerr.GraphQLErrors != "" {
				metrics.GatewayRequests.WithLabelValues(operation, "graphql_errors").Inc()
				slog.Warn("gateway answered with graphql errors",
					"operation", operation, "graphql_errors", rerr.GraphQLErrors)
				return partial, rerr
			}
			metrics.GatewayRequests.WithLabelValues(operation, "rejected").Inc()
			slog.Warn("gateway rejected request",
				"operation", operation, "status", rerr.StatusCode, "body", rerr.Body)
			return nil, rerr
		}
		metrics.GatewayRequests.WithLabelValues(operation, "transport_error").Inc()
		return nil, fmt.Errorf("gateway %s: %w", operation, err)
	}
	metrics.GatewayRequests.WithLabelValues(operation, "ok").Inc()
	return doc, nil
}

func (c *Client) policy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.MaxInterval = c.maxDelay
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return b
}

func (c *Client) do(ctx context.Context, operation string, payload []byte) (*jsontree.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	for _, h := range c.headers {
		req.Header.Set(h[0], h[1])
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(&ResponseError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), MaxLoggedBody),
		})
	}

	doc, err := jsontree.Parse(body)
	if err != nil {
		return nil, backoff.Permanent(&ResponseError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), MaxLoggedBody),
		})
	}
	if errs := doc.Get("errors"); errs != nil && errs.Kind != jsontree.Null {
		text, _ := errs.MarshalJSON()
		return doc, backoff.Permanent(&ResponseError{
			Operation:     operation,
			StatusCode:    resp.StatusCode,
			GraphQLErrors: truncate(string(text), MaxLoggedBody),
		})
	}
	return doc, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
