// Package client is a typed HTTP client for the MossPay API and the pages whose data-*
// attributes drive the user interface. Requests are never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout bounds every request made by a Client built with New.
const DefaultTimeout = 15 * time.Second

// APIError is a non-2xx response; Message is the server's {"error": ...} text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Role records which login the client holds.
type Role string

const (
	RoleNone     Role = ""
	RoleConsumer Role = "consumer"
	RoleVendor   Role = "vendor"
)

// Client talks to one MossPay server and keeps its session cookie.
type Client struct {
	base *url.URL
	http *http.Client
	role Role
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. A cookie jar is added if it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New parses the server base URL, e.g. http://localhost:5000.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: base url %q needs a scheme and host", baseURL)
	}
	c := &Client{base: base, http: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Role reports the current login.
func (c *Client) Role() Role { return c.role }

// Jar exposes the session cookies, e.g. for the advisor websocket.
func (c *Client) Jar() http.CookieJar { return c.http.Jar }

// URL resolves a server path.
func (c *Client) URL(path string) string {
	return c.base.String() + path
}

// AdvisorURL is the websocket address of the eco advisor.
func (c *Client) AdvisorURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws/eco-advisor"
	return u.String()
}

// postJSON sends body and decodes a 2xx response into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
			return fmt.Errorf("%s: unexpected status %s", path, resp.Status)
		}
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}

// page fetches a server-rendered page. Being bounced to a login form counts as 401.
func (c *Client) page(ctx context.Context, path string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: parse html: %w", path, err)
	}
	if resp.Request.URL.Path != path && strings.HasSuffix(resp.Request.URL.Path, "/login") {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: flashOr(doc, "Not authorized")}
	}
	return doc, nil
}

func flashOr(doc *goquery.Document, fallback string) string {
	if msg := strings.TrimSpace(doc.Find("#flash").Text()); msg != "" {
		return msg
	}
	return fallback
}

// ErrNotLoggedIn is returned by Logout when there is no session.
var ErrNotLoggedIn = errors.New("client: not logged in")
