// Package gateway talks to the diagnostic gateway over HTTP.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/elasticdoctor/webapp/internal/metrics"
)

const (
	endpointUsageStats = "usage_stats"

	maxResponseSize = 10 << 20
)

// Response is a gateway reply passed through to the caller untouched.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

// UsageStats calls GET {base}/usage/stats. An error is returned only when no
// response was received.
func (c *Client) UsageStats(ctx context.Context, email string, days int) (Response, error) {
	q := url.Values{}
	q.Set("user_email", email)
	q.Set("days", strconv.Itoa(days))

	resp, err := c.get(ctx, "/usage/stats?"+q.Encode())
	c.metrics.RecordGatewayRequest(endpointUsageStats, resp.StatusCode)
	return resp, err
}

func (c *Client) get(ctx context.Context, path string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("gateway request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return Response{}, fmt.Errorf("read gateway response: %w", err)
	}
	return Response{
		StatusCode:  res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
