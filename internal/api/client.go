package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	appLog "tutorcal/internal/log"
)

// DefaultTimeout applies when NewClient is given a non-positive timeout.
const DefaultTimeout = 15 * time.Second

// Client talks to the lesson REST backend.
type Client struct {
	baseURL  *url.URL
	client   *http.Client
	session  *Session
	validate *validator.Validate

	// Now is injectable for session expiry checks in tests.
	Now func() time.Time
}

// NewClient builds a Client for baseURL ("https://api.example.com/v1").
func NewClient(baseURL string, session *Session, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("api: base URL is empty")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  u,
		client:   &http.Client{Timeout: timeout},
		session:  session,
		validate: validator.New(),
		Now:      time.Now,
	}, nil
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session { return c.session }

// endpoint joins the base URL with an already escaped path.
func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	if p, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = p
	}
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do performs one authenticated JSON round trip. in and out may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	token, err := c.session.check(c.Now())
	if err != nil {
		return &Error{Op: op, Kind: KindAuth, Err: err}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Kind: KindUnknown, Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), body)
	if err != nil {
		return &Error{Op: op, Kind: KindUnknown, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		kind := transportKind(err)
		if kind == KindUnknown {
			kind = KindNetwork
		}
		appLog.Error("api request failed", err, "op", op, "kind", kind, "elapsed", time.Since(start))
		return &Error{Op: op, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		kind := statusKind(resp.StatusCode)
		if kind == KindAuth && resp.StatusCode == http.StatusUnauthorized {
			c.session.Clear()
		}
		appLog.Error("api request rejected", errors.New(resp.Status), "op", op, "status", resp.StatusCode, "kind", kind)
		return &Error{Op: op, Kind: kind, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(msg)))}
	}

	appLog.Debug("api request ok", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
