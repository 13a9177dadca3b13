package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// ErrUnauthorized means the host refused the password. Callers should forget
// the stored credential.
var ErrUnauthorized = errors.New("file host rejected the password")

// StatusError is returned for any other non-200 answer.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.Path, e.Code)
}

// FileInfo is one entry of the host's file listing.
type FileInfo struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Updated   string `json:"updated"`
}

// FileName joins name and extension the way files are stored locally.
func (f FileInfo) FileName() string {
	if f.Extension == "" {
		return f.Name
	}
	return f.Name + "." + f.Extension
}

type Options struct {
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to a file host: GET {base}/files lists, GET
// {base}/files/{name}.{ext} downloads. Both take the password as a query
// parameter. Requests are paced by a token bucket.
type Client struct {
	base    string
	http    *fasthttp.Client
	limiter *rate.Limiter
	timeout time.Duration
}

func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid file host url %q", baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			Name:         "cbv",
			ReadTimeout:  opts.Timeout,
			WriteTimeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.Timeout,
	}, nil
}

// List returns the host's files.
func (c *Client) List(ctx context.Context, password string) ([]FileInfo, error) {
	body, err := c.get(ctx, "/files", password)
	if err != nil {
		return nil, err
	}
	var files []FileInfo
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	return files, nil
}

// Download fetches one file's raw export document.
func (c *Client) Download(ctx context.Context, f FileInfo, password string) ([]byte, error) {
	return c.get(ctx, "/files/"+url.PathEscape(f.FileName()), password)
}

func (c *Client) get(ctx context.Context, path, password string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + path + "?" + url.Values{"password": {password}}.Encode())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	switch code := resp.StatusCode(); code {
	case fasthttp.StatusOK:
	case fasthttp.StatusUnauthorized, fasthttp.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		return nil, &StatusError{Code: code, Path: path}
	}

	// The body buffer goes back to the pool on release
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}
