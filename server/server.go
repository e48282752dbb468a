// Package server talks to the translation-management server: it downloads
// the key/value store of a feature and uploads missing keys.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/garbanzo-i18n/garbanzo/httpclient"
	"github.com/garbanzo-i18n/garbanzo/tree"
)

const (
	// DefaultRetryMax is the number of retries after the first attempt.
	DefaultRetryMax = 3
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	serviceTokenHeader = "X-SERVICE-TOKEN"
	maxErrorBody       = 512
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Options configures a Client.
type Options struct {
	// Endpoint is the feature URL. Its query string is only sent on pushes.
	Endpoint     string
	ServiceToken string
	BearerToken  string

	RetryMax int
	Timeout  time.Duration
	Proxy    string
	// HTTPClient replaces the default transport.
	HTTPClient *http.Client
	// OnLog receives retry diagnostics.
	OnLog func(format string, args ...any)
}

// Client is a translation-server collaborator bound to one endpoint.
type Client struct {
	endpoint *url.URL
	service  string
	bearer   string
	http     *retryablehttp.Client
}

// logAdapter satisfies retryablehttp.Logger.
type logAdapter func(format string, args ...any)

func (l logAdapter) Printf(format string, args ...any) { l(format, args...) }

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("server endpoint is required")
	}
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid server endpoint %q: %w", opts.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server endpoint %q: scheme must be http or https", opts.Endpoint)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retryMax := opts.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.Logger = nil
	if opts.OnLog != nil {
		rc.Logger = logAdapter(opts.OnLog)
	}
	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	} else {
		rc.HTTPClient = httpclient.New(opts.Proxy, timeout)
	}
	// Keep the last response so its status and body can be reported.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		endpoint: u,
		service:  opts.ServiceToken,
		bearer:   opts.BearerToken,
		http:     rc,
	}, nil
}

// FetchURL is the endpoint without its query string.
func (c *Client) FetchURL() string {
	u := *c.endpoint
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// PushURL is the endpoint with extra query parameters appended. extra may
// start with "?".
func (c *Client) PushURL(extra string) string {
	u := *c.endpoint
	u.Fragment = ""
	extra = strings.TrimPrefix(extra, "?")
	switch {
	case extra == "":
	case u.RawQuery == "":
		u.RawQuery = extra
	default:
		u.RawQuery += "&" + extra
	}
	return u.String()
}

// Fetch downloads the key/value store. The server wraps it as
// {"data": <store>}.
func (c *Client) Fetch(ctx context.Context) (tree.Value, error) {
	body, err := c.do(ctx, http.MethodGet, c.FetchURL(), nil)
	if err != nil {
		return nil, err
	}
	doc, err := tree.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("decoding server response: %w", err)
	}
	data, ok := tree.AsMapping(doc).Get("data")
	if !ok {
		return nil, errors.New(`decoding server response: missing "data"`)
	}
	return data, nil
}

// Push uploads a key/value store.
func (c *Client) Push(ctx context.Context, store tree.Value, query string) error {
	payload, err := tree.Marshal(store)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, c.PushURL(query), payload)
	return err
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var body any
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.service != "" {
		req.Header.Set(serviceTokenHeader, c.service)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, redact(target), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %w", method, redact(target), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(data))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody] + "..."
		}
		return nil, &StatusError{Method: method, URL: redact(target), Code: resp.StatusCode, Body: text}
	}
	return data, nil
}

// redact hides query values, which often carry credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	for k := range q {
		q.Set(k, "xxxxx")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
