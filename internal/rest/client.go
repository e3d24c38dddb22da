// Package rest talks to the wiki's REST API: it lists remote resources for
// the filesystem and opens pages as documents.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"wikifs/internal/logging"
	"wikifs/internal/metrics"
	"wikifs/internal/pageref"
	"wikifs/internal/wikierr"
	"wikifs/internal/xmltree"
)

var clientLogger = logging.GetLogger().WithPrefix("rest")

// Namespace is the XML namespace of REST resources.
const Namespace = "http://www.xwiki.org"

// Config holds client configuration.
type Config struct {
	BaseURL string // wiki webapp root, e.g. http://localhost:8080/xwiki
	User    string
	Pass    string
	Headers map[string]string
	Timeout time.Duration
	// Debug keeps response bodies of failed requests in returned errors.
	Debug bool
}

// Client performs authenticated REST requests.
type Client struct {
	baseURL    string
	user       string
	pass       string
	headers    map[string]string
	debug      bool
	httpClient *http.Client
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		user:    cfg.User,
		pass:    cfg.Pass,
		headers: cfg.Headers,
		debug:   cfg.Debug,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// RESTURL returns the REST root.
func (c *Client) RESTURL() string {
	return c.baseURL + "/rest"
}

// WikiURL returns the REST URL of a wiki.
func (c *Client) WikiURL(wiki string) string {
	return c.RESTURL() + "/wikis/" + pageref.EscapeSegment(wiki)
}

// PageURL returns the REST URL of a page.
func (c *Client) PageURL(wiki string, ref pageref.Reference) string {
	return c.WikiURL(wiki) + ref.RESTPath()
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/xml")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(method, 0, time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	metrics.RecordRemoteRequest(method, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &wikierr.StatusError{Method: method, URL: url, StatusCode: resp.StatusCode}
		if c.debug {
			statusErr.Body = string(data)
		}
		clientLogger.Debug("%v", statusErr)
		return nil, statusErr
	}

	clientLogger.Trace("%s %s: %d (%d bytes)", method, url, resp.StatusCode, len(data))
	return data, nil
}

// Get fetches url and returns the body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, "", nil)
}

// GetXML fetches url and parses the body as XML.
func (c *Client) GetXML(ctx context.Context, url string) (*xmltree.Element, error) {
	data, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return root, nil
}

// Put sends body to url.
func (c *Client) Put(ctx context.Context, url, contentType string, body []byte) error {
	_, err := c.do(ctx, http.MethodPut, url, contentType, body)
	return err
}

// PutXML sends an element as an XML document.
func (c *Client) PutXML(ctx context.Context, url string, el *xmltree.Element) error {
	var b bytes.Buffer
	if err := el.Encode(&b); err != nil {
		return err
	}
	return c.Put(ctx, url, "application/xml; charset=utf-8", b.Bytes())
}
