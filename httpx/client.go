package httpx

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const maxErrorBody = 256

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s %s: %s", e.Code, e.Method, e.URL, e.Body)
}

// Client is a JSON-over-HTTP client with a base URL and a per-call timeout.
type Client struct {
	resty *resty.Client
}

func NewClient(opts ...ClientOption) *Client {
	cfg := defaultClientOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New()
	if cfg.BaseURL != "" {
		rc.SetBaseURL(cfg.BaseURL)
	}
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if len(cfg.Headers) > 0 {
		rc.SetHeaders(cfg.Headers)
	}

	return &Client{resty: rc}
}

type RequestOption func(*resty.Request)

// WithQuery sets query parameters on the request.
func WithQuery(params map[string]string) RequestOption {
	return func(r *resty.Request) {
		if len(params) == 0 {
			return
		}
		r.SetQueryParams(params)
	}
}

// Get issues a GET against path, which may be relative to the base URL or
// absolute. A 2xx JSON body is decoded into result.
func (c *Client) Get(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodGet, path, result, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx)
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	if result != nil {
		req.SetResult(result).ForceContentType("application/json")
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return resp, err
	}
	if !resp.IsSuccess() {
		msg := strings.TrimSpace(resp.String())
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return resp, &StatusError{Method: method, URL: resp.Request.URL, Code: resp.StatusCode(), Body: msg}
	}
	return resp, nil
}
