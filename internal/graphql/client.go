// Package graphql executes the paginated extraction protocol against the
// remote Fast-Weigh GraphQL API: request shaping, retry with exponential
// backoff, cursor pagination, and the fixed page contract (records at a
// configured root path, page info at a configured path).
//
// The client is purely functional with respect to the warehouse; its only
// side effect is network I/O.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/payload"
)

// Retry policy for a single page request: 4 attempts total, exponential
// backoff starting at 1s, doubling, capped at 8s. Retries cover transport
// failures and API error envelopes; the final failure propagates verbatim.
const (
	maxAttempts          = 4
	defaultRetryInitial  = 1 * time.Second
	defaultRetryCap      = 8 * time.Second
	defaultRetryMultiple = 2
)

// Client issues GraphQL requests against one tenant endpoint.
type Client struct {
	endpoint     string
	apiKey       string
	http         *http.Client
	retryInitial time.Duration
	retryCap     time.Duration
	log          *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryIntervals overrides the backoff schedule. Used in tests to keep
// the 4-attempt policy observable without real waits.
func WithRetryIntervals(initial, cap time.Duration) Option {
	return func(c *Client) {
		c.retryInitial = initial
		c.retryCap = cap
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the given endpoint. The timeout bounds
// each network call.
func NewClient(endpoint, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		endpoint:     endpoint,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: timeout},
		retryInitial: defaultRetryInitial,
		retryCap:     defaultRetryCap,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs one logical query with the configured retry policy and
// returns the full decoded response document.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (payload.Record, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryCap
	b.Multiplier = defaultRetryMultiple
	b.RandomizationFactor = 0

	operation := func() (payload.Record, error) {
		return c.post(ctx, query, variables)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Warn("graphql request failed, retrying", "error", err, "wait", wait)
		}),
	)
}

// post issues a single request attempt.
func (c *Client) post(ctx context.Context, query string, variables map[string]any) (payload.Record, error) {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, respBody)
	}

	doc, err := payload.Decode(respBody)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if errs, ok := doc["errors"].([]any); ok && len(errs) > 0 {
		return nil, &APIError{Status: resp.StatusCode, Errors: errs}
	}
	if _, ok := doc["data"]; !ok {
		return nil, &APIError{Status: resp.StatusCode}
	}

	return doc, nil
}

// PageSpec locates records and page info inside a response and names the
// variables carrying pagination and window bounds.
type PageSpec struct {
	RootPath              string
	PageInfoPath          string
	FirstVariable         string
	AfterVariable         string
	UpdatedAfterVariable  string
	UpdatedBeforeVariable string
}

// FetchAllPages retrieves every record for one sync window, following the
// cursor until hasNextPage is false. The cursor variable is null on the
// first page. Each page completes exactly once within the call; a page
// count past maxPages fails with PaginationLimitError, and a missing or
// mis-typed root/page-info path fails with ContractError without retrying.
func (c *Client) FetchAllPages(
	ctx context.Context,
	query string,
	spec PageSpec,
	windowStart, windowEnd time.Time,
	pageSize, maxPages int,
) ([]payload.Record, error) {
	var (
		after   any
		records []payload.Record
		pages   int
	)

	for {
		pages++
		if pages > maxPages {
			return nil, &PaginationLimitError{MaxPages: maxPages}
		}

		variables := map[string]any{
			spec.FirstVariable:         pageSize,
			spec.AfterVariable:         after,
			spec.UpdatedAfterVariable:  windowStart.UTC().Format(time.RFC3339),
			spec.UpdatedBeforeVariable: windowEnd.UTC().Format(time.RFC3339),
		}

		doc, err := c.Execute(ctx, query, variables)
		if err != nil {
			return nil, err
		}

		rootVal, rootOK := doc.Lookup(spec.RootPath)
		infoVal, infoOK := doc.Lookup(spec.PageInfoPath)
		if !rootOK || !infoOK {
			return nil, &ContractError{
				RootPath:     spec.RootPath,
				PageInfoPath: spec.PageInfoPath,
				Reason:       "path missing from response",
			}
		}

		rows, ok := rootVal.([]any)
		if !ok {
			return nil, &ContractError{
				RootPath:     spec.RootPath,
				PageInfoPath: spec.PageInfoPath,
				Reason:       "root path is not a list",
			}
		}
		pageInfo, ok := infoVal.(map[string]any)
		if !ok {
			return nil, &ContractError{
				RootPath:     spec.RootPath,
				PageInfoPath: spec.PageInfoPath,
				Reason:       "page info is not an object",
			}
		}

		for _, row := range rows {
			record, ok := row.(map[string]any)
			if !ok {
				return nil, &ContractError{
					RootPath:     spec.RootPath,
					PageInfoPath: spec.PageInfoPath,
					Reason:       "record is not an object",
				}
			}
			records = append(records, payload.Record(record))
		}

		c.log.Debug("page fetched", "page", pages, "records", len(rows))

		hasNext, _ := pageInfo["hasNextPage"].(bool)
		if !hasNext {
			break
		}
		after = pageInfo["endCursor"]
	}

	return records, nil
}
