// Package balance implements the client to the external balance authority. The service replies GET {url}/{address}
// with the current balance of the address as a JSON number or string.
package balance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Errors returned.
var (
	ErrStatus  = errors.New("balance service replied a non 2xx status")
	ErrBalance = errors.New("balance response is not a non-negative integer")
)

// maxBody limits the size of the balance responses read.
const maxBody = 1 << 16

// Client gets balances from the balance service. It does not retry.
type Client struct {
	url     string
	c       *http.Client
	limiter *rate.Limiter
}

// New returns a balance service client for the base url. timeout bounds each request and rps, when positive, limits
// the number of requests per second sent to the service.
func New(url string, timeout time.Duration, rps float64) *Client {
	c := &Client{
		url: strings.TrimRight(url, "/"),
		c:   &http.Client{Timeout: timeout},
	}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return c
}

// Get returns the raw response body for address. Network errors and non 2xx replies are returned as errors.
func (c *Client) Get(ctx context.Context, address string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("balance: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("balance: reading body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return body, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	return body, nil
}

// Parse decodes a balance response body. Both 123 and "123" are accepted; fractions and negatives are rejected.
func Parse(body []byte) (*big.Int, error) {
	var v interface{}

	d := json.NewDecoder(strings.NewReader(string(body)))
	d.UseNumber()

	if err := d.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalance, err)
	}

	var s string

	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return nil, fmt.Errorf("%w: %T", ErrBalance, v)
	}

	n, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalance, err)
	}

	if n.Sign() < 0 || !n.Equal(n.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s", ErrBalance, s)
	}

	return n.BigInt(), nil
}
