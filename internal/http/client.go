// Package http provides an HTTP client preconfigured for mutual TLS
// authentication and automatic retries.
package http

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/hashicorp/go-retryablehttp"
)

// Client is a specialized HTTP client, configured with mutual TLS certificate
// authentication and a retry policy for transient failures.
type Client struct {
	client    *retryablehttp.Client
	userAgent string
}

// Response is a condensed HTTP response. Header values are flattened into a
// metadata map, keeping the first value of each header.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Metadata   map[string]string `json:"metadata"`
	Body       []byte            `json:"body"`
}

// NewHTTPClient creates a client with the given TLS configuration and
// user-agent string. Requests that fail with connection errors or retryable
// status codes are resent with exponential backoff up to retries times.
func NewHTTPClient(tlsConfig *tls.Config, ua string, retries int, timeout time.Duration) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	// Hand back the last response instead of swallowing it when retries run
	// out, so callers can inspect the status code.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if tlsConfig != nil {
		if transport, ok := client.HTTPClient.Transport.(*http.Transport); ok {
			transport.TLSClientConfig = tlsConfig.Clone()
		}
	}

	return &Client{
		client:    client,
		userAgent: ua,
	}
}

// Get performs an HTTP GET request on url.
func (c *Client) Get(url string) (*Response, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot create HTTP request: %w", err)
	}
	req.Header.Add("User-Agent", c.userAgent)

	log.Debugf("sending HTTP request: %v %v", req.Method, req.URL)
	log.Tracef("request: %v", req)

	return c.do(req)
}

// Post performs an HTTP POST request on url, sending body with the given
// headers.
func (c *Client) Post(url string, headers map[string]string, body []byte) (*Response, error) {
	req, err := retryablehttp.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cannot create HTTP request: %w", err)
	}

	for k, v := range headers {
		req.Header.Add(k, strings.TrimSpace(v))
	}
	req.Header.Add("User-Agent", c.userAgent)

	log.Debugf("sending HTTP request: %v %v", req.Method, req.URL)
	log.Tracef("request: %v", req)

	return c.do(req)
}

func (c *Client) do(req *retryablehttp.Request) (*Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot do HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read HTTP response body: %w", err)
	}

	metadata := make(map[string]string)
	for header := range resp.Header {
		metadata[header] = resp.Header.Get(header)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Metadata:   metadata,
		Body:       body,
	}, nil
}
