// Package hive is a client for the HAfAH chain-history REST API.
package hive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	// OpCustomJSON is the operation type id of custom_json.
	OpCustomJSON = 18
	// ElectionResultFilter selects election result operations in a block.
	ElectionResultFilter = "value.id=vsc.election_result"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http %d", e.URL, e.Code)
}

// Client is safe for concurrent use; both correlators share one.
type Client struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewClient creates a client for baseURL, e.g. https://host/hafah-api.
// Five consecutive failures open the breaker for timeout.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "hafah",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// Transaction fetches a transaction by id.
func (c *Client) Transaction(ctx context.Context, id string) (*Transaction, error) {
	u := fmt.Sprintf("%s/transactions/%s?include-virtual=false", c.baseURL, url.PathEscape(id))
	var tx Transaction
	if err := c.getJSON(ctx, u, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// BlockOperations lists the operations of one type in the block at height,
// narrowed by pathFilter (e.g. ElectionResultFilter).
func (c *Client) BlockOperations(ctx context.Context, height uint64, opType int, pathFilter string) ([]BlockOperation, error) {
	q := url.Values{}
	q.Set("operation-types", strconv.Itoa(opType))
	q.Set("page", "1")
	q.Set("page-size", "2000")
	q.Set("page-order", "asc")
	q.Set("data-size-limit", "2000000")
	if pathFilter != "" {
		q.Set("path-filter", pathFilter)
	}
	u := fmt.Sprintf("%s/blocks/%d/operations?%s", c.baseURL, height, q.Encode())

	var resp blockOperationsResp
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp.OperationsResult, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, &StatusError{URL: u, Code: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", u, err)
		}
		return nil, nil
	})
	if err != nil {
		c.log.Debug("chain-history request failed", zap.String("url", u), zap.Error(err))
	}
	return err
}
