// Package httpclient builds the HTTP clients garbanzo uses to talk to GitHub
// and the translation server.
package httpclient

import (
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// New returns a client with its own pooled transport. proxyURL overrides
// HTTP_PROXY / HTTPS_PROXY; an empty or unparsable value keeps the
// environment proxy. A zero timeout means no timeout.
func New(proxyURL string, timeout time.Duration) *http.Client {
	transport := cleanhttp.DefaultPooledTransport()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}
