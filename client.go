package session

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

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// RequestIDHeader is set on every outgoing request.
const RequestIDHeader = "X-Request-ID"

const (
	metaStatus    = "status"
	metaBody      = "body"
	metaRequestID = "request_id"
)

// TokenSource returns the bearer credential to attach, or "" for none.
type TokenSource func() string

// UnauthorizedHandler runs when the API answers 401 to a request that
// carried a bearer credential.
type UnauthorizedHandler func(ctx context.Context)

// Client talks JSON to the ERP API. The bearer credential is read from the
// TokenSource for every request, never cached.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	tokens         TokenSource
	logger         Logger
	onUnauthorized UnauthorizedHandler
	requestID      func() string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRequestTimeout sets the per request timeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithClientLogger sets the logger
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUnauthorizedHandler registers the credential rejection hook.
func WithUnauthorizedHandler(h UnauthorizedHandler) ClientOption {
	return func(c *Client) {
		c.onUnauthorized = h
	}
}

// WithRequestIDGenerator overrides the X-Request-ID generator.
func WithRequestIDGenerator(gen func() string) ClientOption {
	return func(c *Client) {
		if gen != nil {
			c.requestID = gen
		}
	}
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, derive(ErrValidation, fmt.Sprintf("invalid API URL %q", baseURL), nil)
	}
	if tokens == nil {
		tokens = func() string { return "" }
	}

	c := &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: DefaultConfig().GetRequestTimeout()},
		tokens:    tokens,
		logger:    defLogger(),
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type requestOptions struct {
	query     url.Values
	anonymous bool
}

// RequestOption customizes a single call.
type RequestOption func(*requestOptions)

// WithQuery adds query parameters.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		o.query = q
	}
}

// Anonymous sends the request without a bearer credential.
func Anonymous() RequestOption {
	return func(o *requestOptions) {
		o.anonymous = true
	}
}

// Do sends body as JSON (when not nil) and decodes the response into out
// (when not nil and the body is not empty). Transport failures map to
// ErrNetwork, non 2xx answers to ErrRemote carrying the status, except a 401
// on an authenticated request which maps to ErrCredentialRejected.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	o := requestOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	endpoint := c.baseURL.JoinPath(path)
	if len(o.query) > 0 {
		endpoint.RawQuery = o.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := c.requestID()
	req.Header.Set(RequestIDHeader, requestID)

	authenticated := false
	if !o.anonymous {
		if token := c.tokens(); token != "" {
			(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
			authenticated = true
		}
	}

	started := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.logger.Warn("api request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return derive(ErrNetwork, fmt.Sprintf("%s %s: %v", method, path, err), map[string]any{
			metaRequestID: requestID,
		})
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return derive(ErrNetwork, fmt.Sprintf("read %s %s response: %v", method, path, err), map[string]any{
			metaRequestID: requestID,
		})
	}

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", res.StatusCode,
		"request_id", requestID,
		"duration", time.Since(started),
	)

	if res.StatusCode == http.StatusUnauthorized && authenticated {
		c.logger.Info("api rejected credential", "method", method, "path", path, "request_id", requestID)
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return derive(ErrCredentialRejected, "", map[string]any{
			metaStatus:    res.StatusCode,
			metaRequestID: requestID,
		})
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Debug("api error response", "status", res.StatusCode, "body", print.MaybePrettyJSON(json.RawMessage(raw)))
		return derive(ErrRemote, remoteMessage(res.StatusCode, raw), map[string]any{
			metaStatus:    res.StatusCode,
			metaBody:      raw,
			metaRequestID: requestID,
		})
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return derive(ErrRemote, fmt.Sprintf("decode %s %s response: %v", method, path, err), map[string]any{
			metaStatus:    res.StatusCode,
			metaRequestID: requestID,
		})
	}
	return nil
}

// remoteMessage prefers the API "message" field over the bare status text.
func remoteMessage(status int, raw []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && strings.TrimSpace(envelope.Message) != "" {
		return envelope.Message
	}
	return fmt.Sprintf("API responded %d %s", status, http.StatusText(status))
}

// StatusCode returns the HTTP status carried by an API error, or 0.
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil || richErr.Metadata == nil {
		return 0
	}
	status, _ := richErr.Metadata[metaStatus].(int)
	return status
}

// ResponseBody returns the raw body of a non 2xx API answer.
func ResponseBody(err error) []byte {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil || richErr.Metadata == nil {
		return nil
	}
	body, _ := richErr.Metadata[metaBody].([]byte)
	return body
}
